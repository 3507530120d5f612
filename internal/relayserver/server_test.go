package relayserver

import (
	"net/http/httptest"
	"testing"

	"ciphera/internal/backup"
	"ciphera/internal/dropbox"
	"ciphera/internal/domain"
	"ciphera/internal/relay"
	"ciphera/internal/vault"

	"context"
)

func TestRelayRegisterAndFetchPrekeyBundle(t *testing.T) {
	srv := httptest.NewServer(NewServer(false).Handler())
	defer srv.Close()

	client := relay.NewHTTP(srv.URL, nil)
	ctx := context.Background()

	bundle := domain.PreKeyBundle{Username: "alice"}
	if err := client.RegisterPreKeyBundle(ctx, bundle); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := client.FetchPreKeyBundle(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("unexpected bundle: %+v", got)
	}
}

func TestRelayEnqueueFetchAck(t *testing.T) {
	srv := httptest.NewServer(NewServer(false).Handler())
	defer srv.Close()

	client := relay.NewHTTP(srv.URL, nil)
	ctx := context.Background()

	env := domain.Envelope{From: "alice", To: "bob", Timestamp: 1}
	if err := client.SendMessage(ctx, env); err != nil {
		t.Fatalf("send: %v", err)
	}

	envs, err := client.FetchMessages(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(envs) != 1 || envs[0].From != "alice" {
		t.Fatalf("unexpected envelopes: %+v", envs)
	}

	if err := client.AckMessages(ctx, "bob", 1); err != nil {
		t.Fatalf("ack: %v", err)
	}
	envs, err = client.FetchMessages(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("fetch after ack: %v", err)
	}
	if len(envs) != 0 {
		t.Fatalf("expected empty queue after ack, got %d", len(envs))
	}
}

func TestVaultPutGetCountAndLatestState(t *testing.T) {
	srv := httptest.NewServer(NewServer(false).Handler())
	defer srv.Close()

	client := vault.NewHTTP(srv.URL, nil)
	ctx := context.Background()

	entry := domain.VaultEntry{
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		SenderDeviceID: "dev-a",
		TargetDeviceID: "dev-b",
		Direction:      domain.DirectionOutgoing,
		HeaderCounter:  3,
	}
	if err := client.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := client.Get(ctx, "conv-1", "dev-a", "msg-1")
	if err != nil || !found {
		t.Fatalf("get: %v found=%v", err, found)
	}
	if got.HeaderCounter != 3 {
		t.Fatalf("unexpected entry: %+v", got)
	}

	if _, err := client.Get(ctx, "conv-1", "dev-a", "msg-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	count, err := client.Count(ctx, "conv-1", "msg-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 fetches, got %d", count)
	}

	latest, err := client.LatestState(ctx, "conv-1", "dev-a")
	if err != nil {
		t.Fatalf("latest state: %v", err)
	}
	if latest.HighestOutgoing != 3 {
		t.Fatalf("unexpected latest state: %+v", latest)
	}

	if err := client.Delete(ctx, "conv-1", "msg-1", "dev-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := client.Get(ctx, "conv-1", "dev-a", "msg-1"); err != nil || found {
		t.Fatalf("expected entry gone, found=%v err=%v", found, err)
	}
}

func TestDropboxCreateDeliverConsumeConflictOnReplay(t *testing.T) {
	srv := httptest.NewServer(NewServer(false).Handler())
	defer srv.Close()

	client := dropbox.NewHTTP(srv.URL, nil)
	ctx := context.Background()

	record, err := client.InvitesCreate(ctx, domain.PreKeyBundle{Username: "owner"}, 600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.InviteID == "" || record.PairingCode == "" {
		t.Fatalf("incomplete invite record: %+v", record)
	}

	lookup, err := client.InvitesLookupCode(ctx, record.PairingCode)
	if err != nil || lookup != record.InviteID {
		t.Fatalf("lookup by code: %v / %q != %q", err, lookup, record.InviteID)
	}

	envelope := domain.SealedEnvelope{InviteID: record.InviteID, Nonce: []byte("n"), Ciphertext: []byte("c")}
	if err := client.InvitesDeliver(ctx, record.InviteID, envelope); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	got, err := client.InvitesConsume(ctx, record.InviteID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if string(got.Ciphertext) != "c" {
		t.Fatalf("unexpected envelope: %+v", got)
	}

	if _, err := client.InvitesConsume(ctx, record.InviteID); err != domain.ErrAlreadyConsumed {
		t.Fatalf("expected ErrAlreadyConsumed on replay, got %v", err)
	}

	if err := client.InvitesConfirm(ctx, record.InviteID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	status, err := client.InvitesStatus(ctx, record.InviteID)
	if err != nil || status != "confirmed" {
		t.Fatalf("unexpected status: %q err=%v", status, err)
	}
}

func TestBackupUploadDownloadNotFoundInitially(t *testing.T) {
	srv := httptest.NewServer(NewServer(false).Handler())
	defer srv.Close()

	client := backup.NewHTTP(srv.URL, nil)
	ctx := context.Background()

	if _, found, err := client.Download(ctx); err != nil || found {
		t.Fatalf("expected no backup yet, found=%v err=%v", found, err)
	}

	blob := domain.BackupBlob{Version: 1, SaltB64: "s", NonceB64: "n", CipherB64: "c", UpdatedAt: 42}
	if err := client.Upload(ctx, blob); err != nil {
		t.Fatalf("upload: %v", err)
	}

	got, found, err := client.Download(ctx)
	if err != nil || !found {
		t.Fatalf("download: %v found=%v", err, found)
	}
	if got.CipherB64 != "c" {
		t.Fatalf("unexpected blob: %+v", got)
	}
}
