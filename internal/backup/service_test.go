package backup

import (
	"context"
	"testing"

	"ciphera/internal/domain"
)

type fakeBackupClient struct {
	blob  domain.BackupBlob
	found bool
}

func (f *fakeBackupClient) Upload(_ context.Context, blob domain.BackupBlob) error {
	f.blob = blob
	f.found = true
	return nil
}

func (f *fakeBackupClient) Download(_ context.Context) (domain.BackupBlob, bool, error) {
	return f.blob, f.found, nil
}

var _ domain.BackupClient = (*fakeBackupClient)(nil)

func TestUploadHydrateRoundTrip(t *testing.T) {
	contacts := NewContactStore(t.TempDir())
	if err := contacts.Upsert("peer-1::device-1", domain.ContactSecret{
		Role:         domain.RoleInitiator,
		PeerDeviceID: "device-1",
		Nickname:     "Alice",
		UpdatedAt:    100,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	client := &fakeBackupClient{}
	uploader := New(contacts, client)

	if err := uploader.Upload(context.Background(), "pw"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	freshContacts := NewContactStore(t.TempDir())
	hydrator := New(freshContacts, client)

	n, err := hydrator.Hydrate(context.Background(), "pw")
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record applied, got %d", n)
	}

	all, err := freshContacts.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if all["peer-1::device-1"].Nickname != "Alice" {
		t.Fatalf("unexpected record: %+v", all["peer-1::device-1"])
	}
}

func TestHydrateWrongPassphraseFails(t *testing.T) {
	contacts := NewContactStore(t.TempDir())
	_ = contacts.Upsert("peer-1::device-1", domain.ContactSecret{PeerDeviceID: "device-1", UpdatedAt: 1})

	client := &fakeBackupClient{}
	uploader := New(contacts, client)
	if err := uploader.Upload(context.Background(), "correct-pw"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	hydrator := New(NewContactStore(t.TempDir()), client)
	if _, err := hydrator.Hydrate(context.Background(), "wrong-pw"); err == nil {
		t.Fatal("expected hydrate under the wrong passphrase to fail")
	}
}

func TestMergeNeverRegressesNewerLocalRecord(t *testing.T) {
	contacts := NewContactStore(t.TempDir())
	if err := contacts.Upsert("peer-1::device-1", domain.ContactSecret{Nickname: "Newer", UpdatedAt: 500}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	n, err := contacts.Merge(map[string]domain.ContactSecret{
		"peer-1::device-1": {Nickname: "Stale", UpdatedAt: 100},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 records applied, got %d", n)
	}

	all, err := contacts.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if all["peer-1::device-1"].Nickname != "Newer" {
		t.Fatalf("merge regressed a newer local record: %+v", all["peer-1::device-1"])
	}
}

func TestHydrateNoBackupIsNoop(t *testing.T) {
	client := &fakeBackupClient{}
	hydrator := New(NewContactStore(t.TempDir()), client)

	n, err := hydrator.Hydrate(context.Background(), "pw")
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
