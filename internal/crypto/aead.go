package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeyBytes   = 32
	SaltBytes  = 16
	NonceBytes = chacha20poly1305.NonceSize
)

// DeriveKEK derives a 32-byte key-encryption key from a passphrase and salt
// using Argon2id. Used to seal the contact-secrets backup blob (see
// internal/backup) and by EncryptSecret/DecryptSecret.
func DeriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1<<16, 8, 1, KeyBytes)
}

// vaultMasterKeySalt is fixed, not random: DeriveMasterKey must produce the
// same key for the same passphrase on any device, with no per-entry salt to
// carry around, so a different device can unwrap a vault entry it never
// wrapped itself.
var vaultMasterKeySalt = sha256.Sum256([]byte("ciphera-key-vault-master-key-v1"))

// DeriveMasterKey derives the stable master key used to wrap/unwrap
// per-message keys in the key vault (spec §4.7/§4.8/§4.9 vault replay).
// Unlike DeriveKEK, which takes a random per-blob salt meant to be stored
// alongside whatever it encrypted, this salt is fixed so every device
// holding the same passphrase arrives at the identical key without needing
// to fetch or store one.
func DeriveMasterKey(passphrase string) []byte {
	return argon2.IDKey([]byte(passphrase), vaultMasterKeySalt[:SaltBytes], 1<<16, 8, 1, KeyBytes)
}

// EncryptSecret AEAD-seals plaintext with a KEK derived from passphrase and
// salt, wiping plaintext afterward.
func EncryptSecret(passphrase string, plaintext []byte, salt []byte) (nonce, ciphertext []byte, err error) {
	if len(salt) != SaltBytes {
		return nil, nil, errors.New("crypto: invalid salt size")
	}
	kek := DeriveKEK(passphrase, salt)
	defer Wipe(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	Wipe(plaintext)
	return nonce, ct, nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(passphrase string, salt, nonce, ciphertext []byte) ([]byte, error) {
	if len(salt) != SaltBytes {
		return nil, errors.New("crypto: invalid salt size")
	}
	kek := DeriveKEK(passphrase, salt)
	defer Wipe(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

// SealWithKey AEAD-seals plaintext directly under a 32-byte key already in
// hand (the vault master key, or a key derived from a DH shared secret),
// generating a fresh random nonce. Used by the vault wrap/unwrap and the
// invite dropbox's anonymous seal, which derive their key material
// themselves rather than from a passphrase.
func SealWithKey(key, ad, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// OpenWithKey reverses SealWithKey.
func OpenWithKey(key, ad, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, ad)
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SealBlobWithKey XChaCha20-Poly1305-seals a large blob (the contact-
// secrets backup) under a 32-byte key with a 24-byte random nonce, wide
// enough to generate per-blob at random with negligible collision risk.
func SealBlobWithKey(key, ad, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// OpenBlobWithKey reverses SealBlobWithKey.
func OpenBlobWithKey(key, ad, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, ad)
}
