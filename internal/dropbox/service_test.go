package dropbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"ciphera/internal/domain"
	identitysvc "ciphera/internal/services/identity"
	prekeysvc "ciphera/internal/services/prekey"
	"ciphera/internal/session"
	"ciphera/internal/store"
)

// fakeDropboxClient is an in-process stand-in for the relay's /invites/*
// surface, enough to exercise the create/deliver/consume/confirm flow
// without a network.
type fakeDropboxClient struct {
	mu        sync.Mutex
	records   map[string]domain.InviteRecord
	envelopes map[string]domain.SealedEnvelope
	consumed  map[string]bool
	codes     map[string]string
	nextID    int
}

func newFakeDropboxClient() *fakeDropboxClient {
	return &fakeDropboxClient{
		records:   map[string]domain.InviteRecord{},
		envelopes: map[string]domain.SealedEnvelope{},
		consumed:  map[string]bool{},
		codes:     map[string]string{},
	}
}

func (f *fakeDropboxClient) InvitesCreate(_ context.Context, ownerBundle domain.PreKeyBundle, ttl int64) (domain.InviteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "invite-1"
	code := "PAIR-CODE"
	rec := domain.InviteRecord{InviteID: id, PairingCode: code, OwnerBundle: ownerBundle, ExpiresAt: time.Now().Unix() + ttl}
	f.records[id] = rec
	f.codes[code] = id
	return rec, nil
}

func (f *fakeDropboxClient) InvitesDeliver(_ context.Context, inviteID string, envelope domain.SealedEnvelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes[inviteID] = envelope
	return nil
}

func (f *fakeDropboxClient) InvitesConsume(_ context.Context, inviteID string) (domain.SealedEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed[inviteID] {
		return domain.SealedEnvelope{}, domain.ErrAlreadyConsumed
	}
	env, ok := f.envelopes[inviteID]
	if !ok {
		return domain.SealedEnvelope{}, domain.ErrNotFound
	}
	return env, nil
}

func (f *fakeDropboxClient) InvitesConfirm(_ context.Context, inviteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed[inviteID] = true
	return nil
}

func (f *fakeDropboxClient) InvitesStatus(_ context.Context, inviteID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed[inviteID] {
		return "consumed", nil
	}
	if _, ok := f.records[inviteID]; ok {
		return "pending", nil
	}
	return "", domain.ErrNotFound
}

func (f *fakeDropboxClient) InvitesLookupCode(_ context.Context, pairingCode string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.codes[pairingCode]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

var _ domain.DropboxClient = (*fakeDropboxClient)(nil)

func newAccount(t *testing.T, username domain.Username) (domain.IdentityService, domain.PreKeyService, domain.Identity) {
	t.Helper()
	dir := t.TempDir()
	idStore := store.NewIdentityFileStore(dir)
	pkStore := store.NewPreKeyFileStore(dir)

	idSvc := identitysvc.New(idStore)
	pkSvc := prekeysvc.New(idStore, pkStore)

	id, _, err := idSvc.GenerateIdentity("pw")
	if err != nil {
		t.Fatalf("generate identity for %s: %v", username, err)
	}
	if _, _, err := pkSvc.GenerateAndStorePreKeys("pw", 5); err != nil {
		t.Fatalf("generate prekeys for %s: %v", username, err)
	}
	return idSvc, pkSvc, id
}

func TestInviteCreateDeliverConsumeFlow(t *testing.T) {
	client := newFakeDropboxClient()

	ownerIdentity, ownerPrekeys, _ := newAccount(t, "owner")
	guestIdentity, guestPrekeys, _ := newAccount(t, "guest")

	ownerSnapshots := session.NewStore(t.TempDir())
	guestSnapshots := session.NewStore(t.TempDir())

	ownerSvc := New(ownerIdentity, ownerPrekeys, client, ownerSnapshots, NewIntentJournal(t.TempDir()), "owner", "https://relay.example", "owner-device")
	guestSvc := New(guestIdentity, guestPrekeys, client, guestSnapshots, NewIntentJournal(t.TempDir()), "guest", "https://relay.example", "guest-device")

	ctx := context.Background()

	record, err := ownerSvc.CreateInvite(ctx, "pw", 600)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	guest := domain.PeerIdentity{AccountDigest: "guest-digest", DeviceID: "guest-device"}
	if err := guestSvc.DeliverContactInit(ctx, "pw", record.InviteID, record.OwnerBundle, guest, domain.GuestProfile{Nickname: "Guest"}); err != nil {
		t.Fatalf("deliver contact init: %v", err)
	}

	peer, conversationID, err := ownerSvc.ConsumeInvite(ctx, "pw", record.InviteID)
	if err != nil {
		t.Fatalf("consume invite: %v", err)
	}
	if peer.AccountDigest != guest.AccountDigest || peer.DeviceID != guest.DeviceID {
		t.Fatalf("peer identity mismatch: got %+v", peer)
	}
	if conversationID == "" {
		t.Fatal("expected a derived conversation id")
	}

	if _, ok := ownerSnapshots.Get(peer.Key()); !ok {
		t.Fatal("expected owner to hold a live ratchet session for the guest")
	}

	if _, _, err := ownerSvc.ConsumeInvite(ctx, "pw", record.InviteID); err == nil {
		t.Fatal("expected second consume to fail")
	}
}
