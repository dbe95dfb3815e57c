// ABOUTME: Wallet proof verification using ed25519 over base58-encoded keys
// ABOUTME: Shared by all verifiers that support wallet-bound identities

package auth

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// VerifyWalletProof checks that proof.Signature is a valid ed25519 signature
// of proof.Message by proof.PublicKey. Returns ErrInvalidWalletProof if the
// key or signature cannot be decoded or the signature does not verify.
func VerifyWalletProof(proof *WalletProof) error {
	pub, err := base58.Decode(proof.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: decoding public key: %v", ErrInvalidWalletProof, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d",
			ErrInvalidWalletProof, ed25519.PublicKeySize, len(pub))
	}

	sig, err := base58.Decode(proof.Signature)
	if err != nil {
		return fmt.Errorf("%w: decoding signature: %v", ErrInvalidWalletProof, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes, got %d",
			ErrInvalidWalletProof, ed25519.SignatureSize, len(sig))
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(proof.Message), sig) {
		return ErrInvalidWalletProof
	}
	return nil
}

// checkWalletProof applies the wallet verification policy for a verifier.
// When required is true a proof must be present and valid. When expected is
// non-empty the proof's public key must match it (the credential is bound to
// a specific wallet). Returns the verified wallet address, or "" if no proof
// was supplied and none was required.
func checkWalletProof(required bool, expected string, proof *WalletProof) (string, error) {
	if proof == nil {
		if required {
			return "", ErrWalletProofRequired
		}
		return "", nil
	}
	if err := VerifyWalletProof(proof); err != nil {
		return "", err
	}
	if expected != "" && proof.PublicKey != expected {
		return "", fmt.Errorf("%w: proof key does not match credential wallet", ErrInvalidWalletProof)
	}
	return proof.PublicKey, nil
}
