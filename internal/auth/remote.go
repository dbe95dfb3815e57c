// ABOUTME: Remote credential verification against an external identity provider
// ABOUTME: Maps provider outages to ErrVerificationUnavailable for retry logic

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultVerifyTimeout bounds the outbound verification call.
const DefaultVerifyTimeout = 10 * time.Second

// RemoteVerifier implements Verifier by posting the credential to an external
// identity provider. The wallet proof, when present, is verified locally so
// the private signature never leaves the process boundary unnecessarily.
type RemoteVerifier struct {
	endpoint      string
	client        *http.Client
	requireWallet bool
}

// NewRemoteVerifier creates a verifier that calls the given provider endpoint.
// A nil client uses a default with DefaultVerifyTimeout.
func NewRemoteVerifier(endpoint string, client *http.Client, requireWallet bool) *RemoteVerifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultVerifyTimeout}
	}
	return &RemoteVerifier{
		endpoint:      endpoint,
		client:        client,
		requireWallet: requireWallet,
	}
}

// verifyRequest is the JSON body sent to the provider.
type verifyRequest struct {
	Credential string `json:"credential"`
}

// verifyResponse is the JSON body expected from the provider on success.
type verifyResponse struct {
	UserID        string   `json:"user_id"`
	Permissions   []string `json:"permissions"`
	WalletAddress string   `json:"wallet_address"`
}

// Verify posts the credential to the provider and interprets the response.
// 2xx yields an Identity, 4xx yields ErrInvalidCredential, anything else
// (including transport failures) yields ErrVerificationUnavailable.
func (v *RemoteVerifier) Verify(ctx context.Context, credential string, proof *WalletProof) (*Identity, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrInvalidCredential)
	}

	body, err := json.Marshal(verifyRequest{Credential: credential})
	if err != nil {
		return nil, fmt.Errorf("encoding verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: provider rejected credential (status %d)", ErrInvalidCredential, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: provider returned status %d", ErrVerificationUnavailable, resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("%w: decoding provider response: %v", ErrVerificationUnavailable, err)
	}
	if vr.UserID == "" {
		return nil, fmt.Errorf("%w: provider response missing user_id", ErrVerificationUnavailable)
	}

	wallet, err := checkWalletProof(v.requireWallet, vr.WalletAddress, proof)
	if err != nil {
		return nil, err
	}
	if wallet == "" {
		wallet = vr.WalletAddress
	}

	return &Identity{
		UserID:        vr.UserID,
		Permissions:   vr.Permissions,
		WalletAddress: wallet,
	}, nil
}
