// ABOUTME: JWT credential verification using HS256 with a configurable secret
// ABOUTME: Extracts user ID, permissions, and wallet binding from token claims

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier implements Verifier using HS256 signed JWTs.
type JWTVerifier struct {
	secret        []byte
	requireWallet bool
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
// When requireWallet is true, every verification must include a valid
// wallet proof.
func NewJWTVerifier(secret []byte, requireWallet bool) *JWTVerifier {
	return &JWTVerifier{secret: secret, requireWallet: requireWallet}
}

// Verify validates the credential as a JWT and extracts the caller identity.
// Claims used: "sub" (required, user ID), "permissions" (optional string
// array), "wallet" (optional, binds the token to a wallet public key).
func (v *JWTVerifier) Verify(_ context.Context, credential string, proof *WalletProof) (*Identity, error) {
	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidCredential)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredential
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidCredential)
	}

	var expectedWallet string
	if w, ok := claims["wallet"].(string); ok {
		expectedWallet = w
	}

	wallet, err := checkWalletProof(v.requireWallet, expectedWallet, proof)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:        sub,
		Permissions:   stringClaim(claims["permissions"]),
		WalletAddress: wallet,
	}, nil
}

// Generate creates a new JWT for the given user with the supplied permissions
// and expiration. Used by the bootstrap command and by tests.
func (v *JWTVerifier) Generate(userID string, permissions []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if len(permissions) > 0 {
		claims["permissions"] = permissions
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// GenerateWalletBound creates a JWT bound to a specific wallet public key.
// Verification of such a token demands a wallet proof signed by that key.
func (v *JWTVerifier) GenerateWalletBound(userID, walletKey string, permissions []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    userID,
		"wallet": walletKey,
		"iat":    now.Unix(),
		"exp":    now.Add(expiresIn).Unix(),
	}
	if len(permissions) > 0 {
		claims["permissions"] = permissions
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// stringClaim converts a JSON array claim into a string slice, dropping
// non-string entries.
func stringClaim(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
