package outbox

import (
	"testing"

	"ciphera/internal/domain"
)

func TestEnqueueDedupesByMessageID(t *testing.T) {
	s := NewStore(t.TempDir())
	job := domain.OutboxJob{
		MessageID:      "msg-1",
		ConversationID: "conv-1",
		SenderDeviceID: "device-a",
	}
	if err := s.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.Enqueue(job); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}

	first, ok, err := s.Dequeue("conv-1", "device-a")
	if err != nil || !ok || first.MessageID != "msg-1" {
		t.Fatalf("expected msg-1, got %+v ok=%v err=%v", first, ok, err)
	}
	_, ok, err = s.Dequeue("conv-1", "device-a")
	if err != nil || ok {
		t.Fatalf("expected empty queue after a single dequeue, ok=%v err=%v", ok, err)
	}
}

func TestDequeueOrderingIsFIFO(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"msg-1", "msg-2", "msg-3"} {
		if err := s.Enqueue(domain.OutboxJob{MessageID: id, ConversationID: "conv-1", SenderDeviceID: "device-a"}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	for _, want := range []string{"msg-1", "msg-2", "msg-3"} {
		job, ok, err := s.Dequeue("conv-1", "device-a")
		if err != nil || !ok || job.MessageID != want {
			t.Fatalf("expected %s, got %+v ok=%v err=%v", want, job, ok, err)
		}
	}
}

func TestPendingVaultPutLifecycle(t *testing.T) {
	s := NewStore(t.TempDir())
	p := domain.PendingVaultPut{
		Entry: domain.VaultEntry{
			ConversationID: "conv-1",
			MessageID:      "msg-1",
			SenderDeviceID: "device-a",
		},
		NextAttempt: 100,
	}
	if err := s.EnqueuePendingVaultPut(p); err != nil {
		t.Fatalf("enqueue pending: %v", err)
	}

	due, err := s.DuePendingVaultPuts(50)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected nothing due yet, got %d", len(due))
	}

	due, err = s.DuePendingVaultPuts(200)
	if err != nil || len(due) != 1 {
		t.Fatalf("expected one due entry, got %d err=%v", len(due), err)
	}

	if err := s.RemovePendingVaultPut("conv-1", "msg-1", "device-a"); err != nil {
		t.Fatalf("remove pending: %v", err)
	}
	due, err = s.DuePendingVaultPuts(200)
	if err != nil || len(due) != 0 {
		t.Fatalf("expected no pending entries after removal, got %d", len(due))
	}
}
