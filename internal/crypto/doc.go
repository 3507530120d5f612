// Package crypto exposes the key primitives used throughout Ciphera (C1).
//
// Contents
//
//   - X25519 key generation, clamping and Diffie-Hellman (GenerateX25519,
//     ClampX25519PrivateKey, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - AEAD encrypt/decrypt for passphrase-derived, raw-key, and large-blob
//     use (EncryptSecret/DecryptSecret, SealWithKey/OpenWithKey,
//     SealBlobWithKey/OpenBlobWithKey)
//   - Argon2id key-encryption-key derivation (DeriveKEK)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//   - Constant-time comparison and base64 codecs (ConstantTimeEqual, B64,
//     UnB64)
//
// # Notes
//
// Key generation and DH return the fixed-size array types defined in
// internal/domain; the AEAD, KEK and random-byte helpers return byte slices.
// Callers should treat returned secrets as sensitive and rely on Wipe when
// practical to reduce lifetime in memory.
package crypto
