package auth

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWalletProofValid(t *testing.T) {
	proof := signedProof(t, "create session for alice")
	assert.NoError(t, VerifyWalletProof(proof))
}

func TestVerifyWalletProofTamperedMessage(t *testing.T) {
	proof := signedProof(t, "create session for alice")
	proof.Message = "create session for mallory"
	assert.ErrorIs(t, VerifyWalletProof(proof), ErrInvalidWalletProof)
}

func TestVerifyWalletProofWrongKey(t *testing.T) {
	proof := signedProof(t, "hello")
	other := signedProof(t, "hello")
	proof.PublicKey = other.PublicKey
	assert.ErrorIs(t, VerifyWalletProof(proof), ErrInvalidWalletProof)
}

func TestVerifyWalletProofMalformedEncodings(t *testing.T) {
	valid := signedProof(t, "hello")

	cases := []struct {
		name  string
		proof WalletProof
	}{
		{"bad key encoding", WalletProof{PublicKey: "not!base58", Signature: valid.Signature, Message: "hello"}},
		{"short key", WalletProof{PublicKey: base58.Encode([]byte("short")), Signature: valid.Signature, Message: "hello"}},
		{"bad signature encoding", WalletProof{PublicKey: valid.PublicKey, Signature: "0OIl", Message: "hello"}},
		{"short signature", WalletProof{PublicKey: valid.PublicKey, Signature: base58.Encode([]byte("short")), Message: "hello"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, VerifyWalletProof(&tc.proof), ErrInvalidWalletProof)
		})
	}
}

func TestCheckWalletProofPolicy(t *testing.T) {
	proof := signedProof(t, "hello")

	t.Run("optional and absent", func(t *testing.T) {
		wallet, err := checkWalletProof(false, "", nil)
		require.NoError(t, err)
		assert.Empty(t, wallet)
	})

	t.Run("required and absent", func(t *testing.T) {
		_, err := checkWalletProof(true, "", nil)
		assert.ErrorIs(t, err, ErrWalletProofRequired)
	})

	t.Run("optional and present", func(t *testing.T) {
		wallet, err := checkWalletProof(false, "", proof)
		require.NoError(t, err)
		assert.Equal(t, proof.PublicKey, wallet)
	})

	t.Run("bound key mismatch", func(t *testing.T) {
		_, err := checkWalletProof(false, "someOtherKey", proof)
		assert.ErrorIs(t, err, ErrInvalidWalletProof)
	})
}
