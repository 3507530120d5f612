// Package identity implements the IdentityService (C1): generating,
// persisting and fingerprinting the local long-term key material.
package identity

import (
	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

type Service struct {
	store domain.IdentityStore
}

func New(s domain.IdentityStore) *Service {
	return &Service{store: s}
}

var _ domain.IdentityService = (*Service)(nil)

// GenerateIdentity creates a fresh X25519+Ed25519 identity, persists it
// encrypted under passphrase, and returns it alongside its fingerprint.
func (s *Service) GenerateIdentity(passphrase string) (domain.Identity, domain.Fingerprint, error) {
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{XPriv: xPriv, XPub: xPub, EdPriv: edPriv, EdPub: edPub}

	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	fp := domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice()))
	return id, fp, nil
}

// LoadIdentity decrypts and returns the local identity.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

// FingerprintIdentity returns the short display fingerprint of the local
// identity's X25519 public key.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(crypto.Fingerprint(id.XPub.Slice())), nil
}
