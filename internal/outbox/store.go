package outbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ciphera/internal/domain"
)

const (
	jobsFile         = "outbox_jobs.json"
	pendingVaultFile = "outbox_pending_vault_puts.json"
)

// Store is the file-backed domain.OutboxStore: a per-(conversation, sender
// device) FIFO of pending sends, plus the pending-vault-put retry queue.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func queueKey(conversationID domain.ConversationID, senderDeviceID string) string {
	return fmt.Sprintf("%s::%s", conversationID, senderDeviceID)
}

// Enqueue appends job to its peer's FIFO. Jobs sharing a MessageID with an
// already-queued job are dropped: re-enqueuing a send that already has a
// durable record is a no-op, not a duplicate.
func (s *Store) Enqueue(job domain.OutboxJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, jobsFile)
	queues := map[string][]domain.OutboxJob{}
	if err := readJSON(path, &queues); err != nil {
		return err
	}

	key := queueKey(job.ConversationID, job.SenderDeviceID)
	for _, existing := range queues[key] {
		if existing.MessageID == job.MessageID {
			return nil
		}
	}
	queues[key] = append(queues[key], job)
	return writeJSON(path, queues)
}

// Dequeue pops and returns the front job for (conversationID,
// senderDeviceID), or ok=false if that peer's FIFO is empty.
func (s *Store) Dequeue(conversationID domain.ConversationID, senderDeviceID string) (domain.OutboxJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, jobsFile)
	queues := map[string][]domain.OutboxJob{}
	if err := readJSON(path, &queues); err != nil {
		return domain.OutboxJob{}, false, err
	}

	key := queueKey(conversationID, senderDeviceID)
	queue := queues[key]
	if len(queue) == 0 {
		return domain.OutboxJob{}, false, nil
	}
	job := queue[0]
	queues[key] = queue[1:]
	if err := writeJSON(path, queues); err != nil {
		return domain.OutboxJob{}, false, err
	}
	return job, true, nil
}

// Remove drops the job with messageID from whichever peer FIFO holds it.
func (s *Store) Remove(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, jobsFile)
	queues := map[string][]domain.OutboxJob{}
	if err := readJSON(path, &queues); err != nil {
		return err
	}

	for key, queue := range queues {
		filtered := queue[:0]
		for _, job := range queue {
			if job.MessageID != messageID {
				filtered = append(filtered, job)
			}
		}
		queues[key] = filtered
	}
	return writeJSON(path, queues)
}

func pendingKey(p domain.PendingVaultPut) string {
	return fmt.Sprintf("%s::%s::%s", p.Entry.ConversationID, p.Entry.MessageID, p.Entry.SenderDeviceID)
}

// EnqueuePendingVaultPut records a vault put that failed outright, deduped
// on (ConversationID, MessageID, SenderDeviceID); a retry of an existing
// entry overwrites its attempt count and backoff schedule.
func (s *Store) EnqueuePendingVaultPut(p domain.PendingVaultPut) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, pendingVaultFile)
	m := map[string]domain.PendingVaultPut{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	m[pendingKey(p)] = p
	return writeJSON(path, m)
}

// DuePendingVaultPuts returns every pending put whose NextAttempt has
// arrived.
func (s *Store) DuePendingVaultPuts(now int64) ([]domain.PendingVaultPut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, pendingVaultFile)
	m := map[string]domain.PendingVaultPut{}
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}

	due := make([]domain.PendingVaultPut, 0, len(m))
	for _, p := range m {
		if p.NextAttempt <= now {
			due = append(due, p)
		}
	}
	return due, nil
}

// RemovePendingVaultPut drops a pending put once it finally succeeds.
func (s *Store) RemovePendingVaultPut(conversationID domain.ConversationID, messageID, senderDeviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, pendingVaultFile)
	m := map[string]domain.PendingVaultPut{}
	if err := readJSON(path, &m); err != nil {
		return err
	}
	key := fmt.Sprintf("%s::%s::%s", conversationID, messageID, senderDeviceID)
	delete(m, key)
	return writeJSON(path, m)
}

func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ domain.OutboxStore = (*Store)(nil)
