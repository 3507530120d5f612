package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"ciphera/internal/domain"
)

const (
	spkPairsFile   = "spk_pairs.json"
	opkPairsFile   = "opk_pairs.json"
	prekeyMetaFile = "prekey_meta.json"
)

// PreKeyFileStore persists SPK and OPK state to disk.
type PreKeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPreKeyFileStore returns a PreKeyFileStore rooted at dir.
func NewPreKeyFileStore(dir string) *PreKeyFileStore {
	return &PreKeyFileStore{dir: dir}
}

type spkPair struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
	Sig  []byte               `json:"sig"`
}

type opkPair struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
}

type prekeyMeta struct {
	CurrentSignedPreKeyID domain.SignedPreKeyID `json:"current_signed_pre_key_id"`
	NextOneTimePreKeySeq  uint64                `json:"next_one_time_pre_key_seq"`
}

// SaveSignedPreKey stores a signed prekey by id.
func (s *PreKeyFileStore) SaveSignedPreKey(
	id domain.SignedPreKeyID,
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]spkPair{}
	_ = readJSON(path, &m)
	m[id] = spkPair{Priv: priv, Pub: pub, Sig: sig}
	return writeJSON(path, m, 0o600)
}

// LoadSignedPreKey retrieves a signed prekey by id.
func (s *PreKeyFileStore) LoadSignedPreKey(
	id domain.SignedPreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]spkPair{}
	if err = readJSON(path, &m); err != nil {
		return priv, pub, nil, false, err
	}
	p, ok := m[id]
	if !ok {
		return priv, pub, nil, false, nil
	}
	return p.Priv, p.Pub, p.Sig, true, nil
}

// SaveOneTimePreKeys merges the provided one-time prekey pairs into the store.
func (s *PreKeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	_ = readJSON(path, &m)
	for _, p := range pairs {
		m[p.ID] = opkPair{Priv: p.Priv, Pub: p.Pub}
	}
	return writeJSON(path, m, 0o600)
}

// ConsumeOneTimePreKey removes and returns a single one-time prekey by id.
func (s *PreKeyFileStore) ConsumeOneTimePreKey(
	id domain.OneTimePreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	if err = readJSON(path, &m); err != nil {
		return priv, pub, false, err
	}
	p, ok := m[id]
	if !ok {
		return priv, pub, false, nil
	}
	delete(m, id)
	if err = writeJSON(path, m, 0o600); err != nil {
		return priv, pub, false, err
	}
	return p.Priv, p.Pub, true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling.
func (s *PreKeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}

	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
	}
	return out, nil
}

// CountOneTimePreKeys reports how many unconsumed one-time prekeys remain,
// used by the prekey service to decide when to top up the relay's supply.
func (s *PreKeyFileStore) CountOneTimePreKeys() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	if err := readJSON(path, &m); err != nil {
		return 0, err
	}
	return len(m), nil
}

// NextOneTimePreKeyID allocates a fresh, never-reused one-time prekey id.
func (s *PreKeyFileStore) NextOneTimePreKeyID() (domain.OneTimePreKeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	_ = readJSON(path, &meta)
	meta.NextOneTimePreKeySeq++
	if err := writeJSON(path, meta, 0o600); err != nil {
		return "", err
	}
	return domain.OneTimePreKeyID(fmt.Sprintf("opk-%d", meta.NextOneTimePreKeySeq)), nil
}

// SetCurrentSignedPreKeyID records which signed prekey id is current.
func (s *PreKeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	_ = readJSON(path, &meta)
	meta.CurrentSignedPreKeyID = id
	return writeJSON(path, meta, 0o600)
}

// CurrentSignedPreKeyID returns the recorded current signed prekey id.
func (s *PreKeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, prekeyMetaFile)
	var meta prekeyMeta
	if err := readJSON(path, &meta); err != nil {
		return "", false, err
	}
	if meta.CurrentSignedPreKeyID == "" {
		return "", false, nil
	}
	return meta.CurrentSignedPreKeyID, true, nil
}

var _ domain.PreKeyStore = (*PreKeyFileStore)(nil)
