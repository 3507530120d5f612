package store

import (
	"path/filepath"
	"sync"

	"ciphera/internal/domain"
)

const convFile = "conversations.json"

// RatchetFileStore persists per-peer Double Ratchet state.
type RatchetFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewRatchetFileStore returns a RatchetFileStore rooted at dir.
func NewRatchetFileStore(dir string) *RatchetFileStore { return &RatchetFileStore{dir: dir} }

// SaveConversation stores or replaces the ratchet state recorded for peer.
func (s *RatchetFileStore) SaveConversation(peer domain.ConversationID, conversation domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, convFile)
	m := map[domain.ConversationID]domain.Conversation{}
	_ = readJSON(path, &m)
	m[peer] = conversation
	return writeJSON(path, m, 0o600)
}

// LoadConversation retrieves the ratchet state recorded for peer, if any.
func (s *RatchetFileStore) LoadConversation(peer domain.ConversationID) (domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, convFile)
	m := map[domain.ConversationID]domain.Conversation{}
	if err := readJSON(path, &m); err != nil {
		return domain.Conversation{}, false, err
	}
	c, ok := m[peer]
	return c, ok, nil
}

var _ domain.RatchetStore = (*RatchetFileStore)(nil)
