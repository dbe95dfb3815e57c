package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-for-jwt-verification")

func TestJWTRoundTrip(t *testing.T) {
	v := NewJWTVerifier(testSecret, false)

	token, err := v.Generate("alice", []string{"agent.write", "message.send"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, []string{"agent.write", "message.send"}, id.Permissions)
	assert.Empty(t, id.WalletAddress)
}

func TestJWTNoPermissions(t *testing.T) {
	v := NewJWTVerifier(testSecret, false)

	token, err := v.Generate("bob", nil, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token, nil)
	require.NoError(t, err)
	assert.Empty(t, id.Permissions)
}

func TestJWTExpired(t *testing.T) {
	v := NewJWTVerifier(testSecret, false)

	token, err := v.Generate("alice", nil, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token, nil)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestJWTWrongSecret(t *testing.T) {
	v := NewJWTVerifier(testSecret, false)
	other := NewJWTVerifier([]byte("a-different-secret-entirely"), false)

	token, err := other.Generate("alice", nil, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token, nil)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestJWTGarbageCredential(t *testing.T) {
	v := NewJWTVerifier(testSecret, false)

	for _, cred := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := v.Verify(context.Background(), cred, nil)
		assert.ErrorIs(t, err, ErrInvalidCredential, "credential %q", cred)
	}
}

func TestJWTWalletRequired(t *testing.T) {
	v := NewJWTVerifier(testSecret, true)

	token, err := v.Generate("alice", nil, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token, nil)
	assert.ErrorIs(t, err, ErrWalletProofRequired)

	proof := signedProof(t, "pod session")
	id, err := v.Verify(context.Background(), token, proof)
	require.NoError(t, err)
	assert.Equal(t, proof.PublicKey, id.WalletAddress)
}

func TestJWTWalletBound(t *testing.T) {
	v := NewJWTVerifier(testSecret, false)

	proof := signedProof(t, "pod session")
	token, err := v.GenerateWalletBound("alice", proof.PublicKey, nil, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token, proof)
	require.NoError(t, err)
	assert.Equal(t, proof.PublicKey, id.WalletAddress)

	// A proof from a different key must be rejected even though it is
	// internally valid.
	other := signedProof(t, "pod session")
	_, err = v.Verify(context.Background(), token, other)
	assert.ErrorIs(t, err, ErrInvalidWalletProof)
}

// signedProof generates a fresh ed25519 keypair and signs message with it.
func signedProof(t *testing.T, message string) *WalletProof {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, []byte(message))
	return &WalletProof{
		PublicKey: base58.Encode(pub),
		Signature: base58.Encode(sig),
		Message:   message,
	}
}
