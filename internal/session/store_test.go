package session

import (
	"testing"

	"ciphera/internal/domain"
)

func TestGetPutDelete(t *testing.T) {
	s := NewStore(t.TempDir())

	if _, ok := s.Get("peer-a"); ok {
		t.Fatalf("expected no holder before Put")
	}

	h := &domain.RatchetHolder{ID: "peer-a"}
	s.Put("peer-a", h)

	got, ok := s.Get("peer-a")
	if !ok || got != h {
		t.Fatalf("expected Get to return the same pointer installed by Put")
	}

	s.Delete("peer-a")
	if _, ok := s.Get("peer-a"); ok {
		t.Fatalf("expected no holder after Delete")
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	snap := domain.RatchetSnapshot{
		RootKeyB64:       "cm9vdA==",
		MyRatchetPrivB64: "cHJpdg==",
		MyRatchetPubB64:  "cHVi",
		Role:             domain.RoleInitiator,
		SendCounterTotal: 3,
	}
	written, reason, err := s.Persist("peer-a", snap, "device-a")
	if err != nil || !written {
		t.Fatalf("expected first persist to succeed, got written=%v reason=%q err=%v", written, reason, err)
	}

	loaded, ok, err := s.Load("peer-a")
	if err != nil || !ok {
		t.Fatalf("expected loaded snapshot, err=%v", err)
	}
	if loaded.SendCounterTotal != 3 {
		t.Fatalf("expected SendCounterTotal=3, got %d", loaded.SendCounterTotal)
	}
}

func TestPersistRejectsRoleMismatch(t *testing.T) {
	s := NewStore(t.TempDir())

	first := domain.RatchetSnapshot{RootKeyB64: "cm9vdA==", Role: domain.RoleInitiator, SendCounterTotal: 1}
	if written, _, err := s.Persist("peer-a", first, ""); err != nil || !written {
		t.Fatalf("expected first persist to succeed")
	}

	second := domain.RatchetSnapshot{RootKeyB64: "cm9vdA==", Role: domain.RoleResponder, SendCounterTotal: 2}
	written, reason, err := s.Persist("peer-a", second, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Fatalf("expected role-mismatched snapshot to be rejected")
	}
	if reason == "" {
		t.Fatalf("expected a rejection reason")
	}
}

// TestPersistRejectsStaleSendChain is §8 scenario 6: a snapshot taken after
// 5 sends establishes ckS; a later snapshot that has lost ckS (e.g. a stale
// backup restore) must be rejected even though ReceiveCounterTotal has not
// regressed at all.
func TestPersistRejectsStaleSendChain(t *testing.T) {
	s := NewStore(t.TempDir())

	withChain := domain.RatchetSnapshot{
		RootKeyB64:          "cm9vdA==",
		Role:                domain.RoleInitiator,
		SendChainKeyB64:     "c2VuZGNoYWluCg==",
		SendMessageIndex:    5,
		SendCounterTotal:    5,
		ReceiveCounterTotal: 10,
	}
	if written, _, err := s.Persist("peer-a", withChain, "device-a"); err != nil || !written {
		t.Fatalf("expected first persist to succeed")
	}

	staleNoChain := domain.RatchetSnapshot{
		RootKeyB64:          "cm9vdA==",
		Role:                domain.RoleInitiator,
		SendCounterTotal:    5,
		ReceiveCounterTotal: 10,
	}
	written, reason, err := s.Persist("peer-a", staleNoChain, "device-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Fatalf("expected a snapshot that lost ckS after 5 sends to be rejected")
	}
	if reason == "" {
		t.Fatalf("expected a rejection reason")
	}

	// Advancing the send chain further (ckS present, NsTotal+Ns greater) must
	// still be accepted even if ReceiveCounterTotal hasn't moved.
	advanced := domain.RatchetSnapshot{
		RootKeyB64:          "cm9vdA==",
		Role:                domain.RoleInitiator,
		SendChainKeyB64:     "c2VuZGNoYWluMgo=",
		SendMessageIndex:    6,
		SendCounterTotal:    5,
		ReceiveCounterTotal: 10,
	}
	written, _, err = s.Persist("peer-a", advanced, "device-a")
	if err != nil || !written {
		t.Fatalf("expected send-chain advance to be accepted, written=%v err=%v", written, err)
	}
}

func TestPersistRejectsStaleReceiveChain(t *testing.T) {
	s := NewStore(t.TempDir())

	withChain := domain.RatchetSnapshot{
		RootKeyB64:         "cm9vdA==",
		Role:               domain.RoleInitiator,
		ReceiveChainKeyB64: "cmVjdmNoYWluCg==",
	}
	if written, _, err := s.Persist("peer-a", withChain, ""); err != nil || !written {
		t.Fatalf("expected first persist to succeed")
	}

	staleNoChain := domain.RatchetSnapshot{RootKeyB64: "cm9vdA==", Role: domain.RoleInitiator}
	written, reason, err := s.Persist("peer-a", staleNoChain, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Fatalf("expected a snapshot that lost ckR to be rejected")
	}
	if reason == "" {
		t.Fatalf("expected a rejection reason")
	}
}

func TestPersistRejectsSelfDeviceIDMismatch(t *testing.T) {
	s := NewStore(t.TempDir())

	snap := domain.RatchetSnapshot{RootKeyB64: "cm9vdA==", Role: domain.RoleInitiator, SelfDeviceID: "device-a"}
	written, reason, err := s.Persist("peer-a", snap, "device-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Fatalf("expected a snapshot bound to a different device id to be rejected")
	}
	if reason == "" {
		t.Fatalf("expected a rejection reason")
	}
}

func TestQuarantineBlocksFurtherWrites(t *testing.T) {
	s := NewStore(t.TempDir())

	snap := domain.RatchetSnapshot{RootKeyB64: "cm9vdA==", Role: domain.RoleInitiator}
	if written, _, err := s.Persist("peer-a", snap, ""); err != nil || !written {
		t.Fatalf("expected first persist to succeed")
	}
	if err := s.Quarantine("peer-a", "corrupt snapshot detected"); err != nil {
		t.Fatalf("quarantine: %v", err)
	}

	if _, _, err := s.Load("peer-a"); err == nil {
		t.Fatalf("expected Load to fail once quarantined")
	}

	written, reason, err := s.Persist("peer-a", snap, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Fatalf("expected Persist to refuse a quarantined peer")
	}
	if reason == "" {
		t.Fatalf("expected a quarantine reason")
	}
}

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	h := domain.RatchetHolder{
		RootKey:             []byte("0123456789abcdef0123456789abcdef"),
		SendChainKey:        []byte("sendchainkeysendchainkeysendchain"),
		ReceiveChainKey:     []byte("recvchainkeyrecvchainkeyrecvchain"),
		SendMessageIndex:    2,
		ReceiveMessageIndex: 1,
		PreviousChainLength: 0,
		SendCounterTotal:    4,
		ReceiveCounterTotal: 3,
		Role:                domain.RoleInitiator,
		SelfDeviceID:        "device-a",
	}
	h.DiffieHellmanPrivate[0] = 0x42
	h.DiffieHellmanPublic[0] = 0x43
	h.PeerDiffieHellmanPublic[0] = 0x44

	snap := EncodeSnapshot(h)
	back, err := DecodeSnapshot(snap, "conv-1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if back.SendCounterTotal != h.SendCounterTotal || back.ReceiveCounterTotal != h.ReceiveCounterTotal {
		t.Fatalf("counters did not round-trip")
	}
	if back.DiffieHellmanPrivate != h.DiffieHellmanPrivate || back.DiffieHellmanPublic != h.DiffieHellmanPublic {
		t.Fatalf("ratchet keys did not round-trip")
	}
	if back.ConversationID != "conv-1" {
		t.Fatalf("expected conversation id to be set from argument")
	}
}
