// ABOUTME: Stable error-kind strings shared by every transport adapter
// ABOUTME: Maps typed pipeline errors to the wire taxonomy without leaking detail

package broker

import (
	"context"
	"errors"

	"github.com/pod-protocol/pod-mcp-server/internal/auth"
	"github.com/pod-protocol/pod-mcp-server/internal/ratelimit"
	"github.com/pod-protocol/pod-mcp-server/internal/session"
	"github.com/pod-protocol/pod-mcp-server/internal/tools"
)

// Error kinds preserved across every transport so clients can distinguish,
// for example, "retry with backoff" from "re-authenticate".
const (
	KindInvalidCredential       = "invalid_credential"
	KindVerificationUnavailable = "verification_unavailable"
	KindWalletProofRequired     = "wallet_proof_required"
	KindInvalidWalletProof      = "invalid_wallet_proof"
	KindSessionNotFound         = "session_not_found"
	KindSessionLimitExceeded    = "session_limit_exceeded"
	KindRateLimitExceeded       = "rate_limit_exceeded"
	KindOperationNotFound       = "operation_not_found"
	KindResourceNotFound        = "resource_not_found"
	KindPermissionDenied        = "permission_denied"
	KindTransportError          = "transport_error"
	KindTimeout                 = "timeout"
	KindInternal                = "internal_error"
)

// ErrorKind returns the stable kind string for a pipeline error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		return KindInvalidCredential
	case errors.Is(err, auth.ErrVerificationUnavailable):
		return KindVerificationUnavailable
	case errors.Is(err, auth.ErrWalletProofRequired):
		return KindWalletProofRequired
	case errors.Is(err, auth.ErrInvalidWalletProof):
		return KindInvalidWalletProof
	case errors.Is(err, session.ErrNotFound):
		return KindSessionNotFound
	case errors.Is(err, session.ErrLimitExceeded):
		return KindSessionLimitExceeded
	case errors.Is(err, ratelimit.ErrRateLimited):
		return KindRateLimitExceeded
	case errors.Is(err, tools.ErrToolNotFound):
		return KindOperationNotFound
	case errors.Is(err, tools.ErrResourceNotFound):
		return KindResourceNotFound
	case errors.Is(err, tools.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}

// ErrorMessage returns a client-safe message for a pipeline error. Internal
// errors get a generic message so provider detail and stack context never
// cross the transport boundary.
func ErrorMessage(err error) string {
	switch ErrorKind(err) {
	case KindInvalidCredential:
		return "invalid credential"
	case KindVerificationUnavailable:
		return "identity verification temporarily unavailable"
	case KindWalletProofRequired:
		return "wallet proof required"
	case KindInvalidWalletProof:
		return "wallet proof did not verify"
	case KindSessionNotFound:
		return "session not found or expired"
	case KindSessionLimitExceeded:
		return "session limit exceeded"
	case KindRateLimitExceeded:
		return "rate limit exceeded"
	case KindOperationNotFound:
		return "unknown tool"
	case KindResourceNotFound:
		return "unknown resource"
	case KindPermissionDenied:
		return "permission denied"
	case KindTimeout:
		return "operation timed out"
	default:
		return "internal error"
	}
}
