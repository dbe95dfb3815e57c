// ABOUTME: Verifier contract shared by all credential verification backends
// ABOUTME: Defines the Identity result type and the verification error taxonomy

package auth

import (
	"context"
	"errors"
)

// Verification errors
var (
	ErrInvalidCredential       = errors.New("invalid credential")
	ErrVerificationUnavailable = errors.New("verification unavailable")
	ErrWalletProofRequired     = errors.New("wallet proof required")
	ErrInvalidWalletProof      = errors.New("invalid wallet proof")
)

// Identity is the result of successful credential verification.
type Identity struct {
	UserID        string   // stable identity from the provider
	Permissions   []string // flat permission-string set, may be empty
	WalletAddress string   // set only when wallet verification succeeded
}

// WalletProof is a secondary cryptographic identity factor: an ed25519
// signature over Message, verified against PublicKey. Both key and signature
// are base58-encoded, matching the Solana wallet wire format.
type WalletProof struct {
	PublicKey string `json:"publicKey" yaml:"public_key"`
	Signature string `json:"signature" yaml:"signature"`
	Message   string `json:"message" yaml:"message"`
}

// Verifier validates an opaque credential and optional wallet proof.
// Implementations must be side-effect free aside from the outbound
// verification call itself.
type Verifier interface {
	Verify(ctx context.Context, credential string, proof *WalletProof) (*Identity, error)
}
