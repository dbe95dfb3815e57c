// Package auth provides credential verification for pod-mcp-server.
//
// # Verification Contract
//
// All identity checks go through the Verifier interface:
//
//	identity, err := verifier.Verify(ctx, credential, walletProof)
//
// A credential is an opaque bearer token. Deployments that require wallet
// verification additionally present a WalletProof: a base58-encoded ed25519
// public key, a base58-encoded signature, and the message that was signed.
//
// Two verifier implementations are provided:
//
//   - JWTVerifier: validates HS256-signed JWTs locally using a shared secret.
//     The "sub" claim becomes the user ID and the "permissions" claim (an
//     array of strings) becomes the permission set.
//
//   - RemoteVerifier: posts the credential to an external identity provider
//     over HTTP. A provider that cannot be reached yields
//     ErrVerificationUnavailable so callers can distinguish outages from
//     rejected credentials.
//
// Verifiers are pure with respect to server state: they never touch the
// session store, so they can safely make network calls before any session
// lock is taken.
//
// # Error Taxonomy
//
// Verification failures are sentinel errors so transports can map them to
// wire representations without string matching:
//
//   - ErrInvalidCredential: credential malformed or rejected
//   - ErrVerificationUnavailable: identity provider unreachable
//   - ErrWalletProofRequired: wallet verification required but no proof given
//   - ErrInvalidWalletProof: signature does not verify
package auth
