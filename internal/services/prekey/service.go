// Package prekey implements the PreKeyService (C2): generating signed and
// one-time prekeys, assembling the bundle published to the relay, and
// topping up the one-time prekey supply as it is consumed.
package prekey

import (
	"encoding/hex"
	"fmt"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// refillTarget is how many one-time prekeys RefreshIfBelow tops the store
// back up to once it dips below the caller's threshold.
const refillTarget = 50

type Service struct {
	ids     domain.IdentityStore
	pkStore domain.PreKeyStore
}

func New(ids domain.IdentityStore, pkStore domain.PreKeyStore) *Service {
	return &Service{ids: ids, pkStore: pkStore}
}

var _ domain.PreKeyService = (*Service)(nil)

// GenerateAndStorePreKeys signs a fresh signed prekey with the local
// identity and generates count one-time prekeys, persisting all of it.
func (s *Service) GenerateAndStorePreKeys(passphrase string, count int) (domain.X25519Public, []domain.X25519Public, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	sig := crypto.SignEd25519(id.EdPriv, spkPub.Slice())

	spkID, err := newSignedPreKeyID()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.pkStore.SaveSignedPreKey(spkID, spkPriv, spkPub, sig); err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.pkStore.SetCurrentSignedPreKeyID(spkID); err != nil {
		return domain.X25519Public{}, nil, err
	}

	otkPubs, err := s.generateOneTimePreKeys(count)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	return spkPub, otkPubs, nil
}

// newSignedPreKeyID mints a fresh, never-reused signed prekey id.
func newSignedPreKeyID() (domain.SignedPreKeyID, error) {
	raw, err := crypto.RandomBytes(8)
	if err != nil {
		return "", err
	}
	return domain.SignedPreKeyID("spk-" + hex.EncodeToString(raw)), nil
}

func (s *Service) generateOneTimePreKeys(count int) ([]domain.X25519Public, error) {
	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	pubs := make([]domain.X25519Public, 0, count)
	for i := 0; i < count; i++ {
		id, err := s.pkStore.NextOneTimePreKeyID()
		if err != nil {
			return nil, err
		}
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{ID: id, Priv: priv, Pub: pub})
		pubs = append(pubs, pub)
	}
	if err := s.pkStore.SaveOneTimePreKeys(pairs); err != nil {
		return nil, err
	}
	return pubs, nil
}

// LoadPreKeyBundle assembles the bundle you would publish to serverURL
// under username, from the identity and currently-stored signed/one-time
// prekeys.
func (s *Service) LoadPreKeyBundle(passphrase string, username domain.Username, serverURL string) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, ok, err := s.pkStore.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("prekey: no signed prekey generated for %s", serverURL)
	}
	_, spkPub, sig, ok, err := s.pkStore.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, fmt.Errorf("prekey: signed prekey %s missing", spkID)
	}

	otks, err := s.pkStore.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	return domain.PreKeyBundle{
		Username:              username,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
		OneTimePreKeys:        otks,
	}, nil
}

// RefreshIfBelow tops the one-time prekey supply back up to refillTarget
// when it has fallen below threshold, returning how many were generated.
func (s *Service) RefreshIfBelow(passphrase string, threshold int) (int, error) {
	n, err := s.pkStore.CountOneTimePreKeys()
	if err != nil {
		return 0, err
	}
	if n >= threshold {
		return 0, nil
	}
	need := refillTarget - n
	if need <= 0 {
		return 0, nil
	}
	if _, err := s.generateOneTimePreKeys(need); err != nil {
		return 0, err
	}
	return need, nil
}
