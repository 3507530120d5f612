package outbox

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
	"ciphera/internal/session"
)

// fakeRelay is a minimal domain.RelayClient stand-in recording every sent
// envelope. rejectCounter, when non-zero, makes the next SendMessage whose
// Meta.Counter is <= rejectCounter fail with domain.ErrCounterTooLow exactly
// once, mimicking a relay that has already accepted a higher counter from
// another local device.
type fakeRelay struct {
	domain.RelayClient
	sent            []domain.Envelope
	rejectCounter   uint64
	rejectedOnce    bool
	sendStateCalled int
}

func (f *fakeRelay) SendMessage(_ context.Context, env domain.Envelope) error {
	if f.rejectCounter != 0 && !f.rejectedOnce && env.Meta.Counter <= f.rejectCounter {
		f.rejectedOnce = true
		return domain.ErrCounterTooLow
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeRelay) SendState(_ context.Context, _, _ domain.Username, _ string) (uint64, error) {
	f.sendStateCalled++
	return f.rejectCounter + 1, nil
}

// fakeVault is a minimal domain.VaultClient stand-in recording every put.
// failNext, when true, makes the next Put fail exactly once.
type fakeVault struct {
	domain.VaultClient
	puts     []domain.VaultEntry
	failNext bool
}

func (f *fakeVault) Put(_ context.Context, entry domain.VaultEntry) error {
	if f.failNext {
		f.failNext = false
		return context.DeadlineExceeded
	}
	f.puts = append(f.puts, entry)
	return nil
}

func bootstrapHolder(t *testing.T) domain.RatchetHolder {
	t.Helper()
	rk := bytes.Repeat([]byte{0x5c}, 32)
	peerPub, _, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	h, err := ratchet.InitAsInitiator(rk, "alice-device", "conv-1", peerPub)
	if err != nil {
		t.Fatalf("init initiator: %v", err)
	}
	return h
}

func newTestService(t *testing.T, relay domain.RelayClient, vaultClient domain.VaultClient, holder domain.RatchetHolder) (*Service, domain.PeerIdentity) {
	t.Helper()
	peer := domain.PeerIdentity{AccountDigest: "bob-digest", DeviceID: "bob-device"}
	snapshots := session.NewStore(t.TempDir())
	snapshots.Put(peer.Key(), &holder)
	store := NewStore(t.TempDir())
	return New(store, snapshots, relay, vaultClient), peer
}

func TestProcessOneSendsAndWritesVaultEntry(t *testing.T) {
	holder := bootstrapHolder(t)
	relay := &fakeRelay{}
	vaultClient := &fakeVault{}
	svc, peer := newTestService(t, relay, vaultClient, holder)

	job := domain.OutboxJob{
		MessageID:      "msg-1",
		ConversationID: "conv-1",
		SenderDeviceID: "alice-device",
		Receiver:       peer,
		Plaintext:      []byte("hello"),
		MessageType:    domain.MessageTypeText,
	}
	if err := svc.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	outcome, err := svc.ProcessOne(context.Background(), "correct horse battery staple", "conv-1", "alice-device")
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !outcome.Sent {
		t.Fatalf("expected sent outcome, got %+v", outcome)
	}
	if len(relay.sent) != 1 {
		t.Fatalf("expected 1 envelope sent, got %d", len(relay.sent))
	}
	if len(vaultClient.puts) != 1 {
		t.Fatalf("expected 1 vault entry written, got %d", len(vaultClient.puts))
	}
	if vaultClient.puts[0].MessageID != "msg-1" {
		t.Fatalf("expected vault entry for msg-1, got %q", vaultClient.puts[0].MessageID)
	}
	if len(vaultClient.puts[0].WrappedMessageKey) == 0 {
		t.Fatal("expected a non-empty wrapped message key")
	}
}

// TestProcessOneRepairsOnCounterTooLow exercises the §8 scenario where the
// relay rejects a send with CounterTooLow (another local device already
// advanced the send chain further than this one knows about): ProcessOne
// must fetch /send-state, adopt the counter the relay reports, mint a new
// message id, and resubmit rather than failing the job.
func TestProcessOneRepairsOnCounterTooLow(t *testing.T) {
	holder := bootstrapHolder(t)
	relay := &fakeRelay{rejectCounter: 7}
	vaultClient := &fakeVault{}
	svc, peer := newTestService(t, relay, vaultClient, holder)

	job := domain.OutboxJob{
		MessageID:      "msg-1",
		ConversationID: "conv-1",
		SenderDeviceID: "alice-device",
		Receiver:       peer,
		Plaintext:      []byte("hello"),
		MessageType:    domain.MessageTypeText,
	}
	if err := svc.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	outcome, err := svc.ProcessOne(context.Background(), "correct horse battery staple", "conv-1", "alice-device")
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !outcome.Sent || !outcome.Replaced {
		t.Fatalf("expected sent+replaced outcome, got %+v", outcome)
	}
	if outcome.ExpectedCounter != 8 {
		t.Fatalf("expected repaired counter 8, got %d", outcome.ExpectedCounter)
	}
	if outcome.NewMessageID == "" || outcome.NewMessageID == "msg-1" {
		t.Fatalf("expected a freshly minted message id, got %q", outcome.NewMessageID)
	}
	if relay.sendStateCalled != 1 {
		t.Fatalf("expected exactly 1 send-state lookup, got %d", relay.sendStateCalled)
	}
	if len(relay.sent) != 1 {
		t.Fatalf("expected the repaired send to land, got %d sent", len(relay.sent))
	}
	if relay.sent[0].Meta.Counter != 8 {
		t.Fatalf("expected repaired envelope counter 8, got %d", relay.sent[0].Meta.Counter)
	}
	if len(vaultClient.puts) != 1 || vaultClient.puts[0].MessageID != outcome.NewMessageID {
		t.Fatalf("expected the vault entry to carry the repaired message id, got %+v", vaultClient.puts)
	}
}

// TestProcessOneParksFailedVaultPutForRetry exercises the Finding-3 wiring:
// a vault put that fails outright must not fail the send (the message is
// already delivered) and must instead be parked in the pending-vault-put
// retry queue for the VaultRetrier to drain later.
func TestProcessOneParksFailedVaultPutForRetry(t *testing.T) {
	holder := bootstrapHolder(t)
	relay := &fakeRelay{}
	vaultClient := &fakeVault{failNext: true}
	peer := domain.PeerIdentity{AccountDigest: "bob-digest", DeviceID: "bob-device"}
	snapshots := session.NewStore(t.TempDir())
	snapshots.Put(peer.Key(), &holder)
	store := NewStore(t.TempDir())
	svc := New(store, snapshots, relay, vaultClient)

	job := domain.OutboxJob{
		MessageID:      "msg-1",
		ConversationID: "conv-1",
		SenderDeviceID: "alice-device",
		Receiver:       peer,
		Plaintext:      []byte("hello"),
		MessageType:    domain.MessageTypeText,
	}
	if err := svc.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	outcome, err := svc.ProcessOne(context.Background(), "correct horse battery staple", "conv-1", "alice-device")
	if err != nil {
		t.Fatalf("process one: %v", err)
	}
	if !outcome.Sent {
		t.Fatalf("expected the send to succeed despite the vault put failing, got %+v", outcome)
	}
	if len(vaultClient.puts) != 0 {
		t.Fatalf("expected the failed put to not be recorded, got %d", len(vaultClient.puts))
	}

	due, err := store.DuePendingVaultPuts(time.Now().Unix() + 1)
	if err != nil {
		t.Fatalf("due pending: %v", err)
	}
	if len(due) != 1 || due[0].Entry.MessageID != "msg-1" {
		t.Fatalf("expected msg-1 parked for retry, got %+v", due)
	}

	retrier := NewVaultRetrier(store, vaultClient)
	retired, err := retrier.RunOnce(context.Background(), time.Now().Unix()+1)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if retired != 1 {
		t.Fatalf("expected 1 retired pending put, got %d", retired)
	}
	if len(vaultClient.puts) != 1 {
		t.Fatalf("expected the retry to finally write the vault entry, got %d", len(vaultClient.puts))
	}
}
