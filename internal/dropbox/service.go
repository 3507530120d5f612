package dropbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
	"ciphera/internal/protocol/x3dh"
	"ciphera/internal/session"
)

// defaultInviteTTL is used by CreateInvite when the caller passes ttl<=0.
const defaultInviteTTL = int64(10 * time.Minute / time.Second)

// Service drives the C6 invite dropbox from both the owner and the guest
// side. It is constructed for one local account (username/serverURL fixed
// at wire-time), matching how a single CLI process only ever acts as one
// account.
type Service struct {
	identity  domain.IdentityService
	prekeys   domain.PreKeyService
	client    domain.DropboxClient
	snapshots domain.SnapshotStore
	intents   *IntentJournal

	username  domain.Username
	serverURL string
	deviceID  string

	limiter *rate.Limiter
}

// New constructs a dropbox Service. deliveries are throttled to one every
// two seconds (rate.Limiter burst 3) to keep a misbehaving guest client
// from hammering the relay with delivery retries.
func New(
	identity domain.IdentityService,
	prekeys domain.PreKeyService,
	client domain.DropboxClient,
	snapshots domain.SnapshotStore,
	intents *IntentJournal,
	username domain.Username,
	serverURL string,
	deviceID string,
) *Service {
	return &Service{
		identity:  identity,
		prekeys:   prekeys,
		client:    client,
		snapshots: snapshots,
		intents:   intents,
		username:  username,
		serverURL: serverURL,
		deviceID:  deviceID,
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

// CreateInvite publishes the caller's current prekey bundle to the dropbox
// with a pairing code and ttl (seconds; defaultInviteTTL when ttl<=0).
func (s *Service) CreateInvite(ctx context.Context, passphrase string, ttl int64) (domain.InviteRecord, error) {
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	bundle, err := s.prekeys.LoadPreKeyBundle(passphrase, s.username, s.serverURL)
	if err != nil {
		return domain.InviteRecord{}, fmt.Errorf("dropbox: loading bundle: %w", err)
	}
	record, err := s.client.InvitesCreate(ctx, bundle, ttl)
	if err != nil {
		return domain.InviteRecord{}, fmt.Errorf("dropbox: creating invite: %w", err)
	}
	return record, nil
}

// DeliverContactInit is the guest side: it seals a ContactInitPayload
// carrying the guest's own bundle and profile to ownerBundle's identity
// key and drops it into the dropbox for inviteID.
func (s *Service) DeliverContactInit(
	ctx context.Context,
	passphrase string,
	inviteID string,
	ownerBundle domain.PreKeyBundle,
	guest domain.PeerIdentity,
	guestProfile domain.GuestProfile,
) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	guestBundle, err := s.prekeys.LoadPreKeyBundle(passphrase, s.username, s.serverURL)
	if err != nil {
		return fmt.Errorf("dropbox: loading guest bundle: %w", err)
	}

	payload := domain.ContactInitPayload{
		Version:            1,
		Type:               "contact-init",
		GuestAccountDigest: guest.AccountDigest,
		GuestDeviceID:      guest.DeviceID,
		GuestBundle:        guestBundle,
		GuestProfile:       guestProfile,
	}

	envelope, err := sealAnonymous(inviteID, ownerBundle.IdentityKey, payload)
	if err != nil {
		return fmt.Errorf("dropbox: sealing contact-init: %w", err)
	}

	if s.intents != nil {
		intent := domain.DeliveryIntent{InviteID: inviteID, Envelope: envelope, CreatedAt: time.Now().Unix()}
		if err := s.intents.Record(intent); err != nil {
			return fmt.Errorf("dropbox: recording delivery intent: %w", err)
		}
	}

	if err := s.client.InvitesDeliver(ctx, inviteID, envelope); err != nil {
		return fmt.Errorf("dropbox: delivering: %w", err)
	}

	if s.intents != nil {
		if err := s.intents.Clear(inviteID); err != nil {
			return fmt.Errorf("dropbox: clearing delivery intent: %w", err)
		}
	}
	return nil
}

// ReplayPendingDeliveries re-delivers every sealed envelope the journal
// still holds an unconfirmed intent for, e.g. after a crash mid-delivery.
func (s *Service) ReplayPendingDeliveries(ctx context.Context) error {
	if s.intents == nil {
		return nil
	}
	pending, err := s.intents.Pending()
	if err != nil {
		return fmt.Errorf("dropbox: listing pending deliveries: %w", err)
	}
	for _, intent := range pending {
		if err := s.client.InvitesDeliver(ctx, intent.InviteID, intent.Envelope); err != nil {
			return fmt.Errorf("dropbox: replaying delivery for %s: %w", intent.InviteID, err)
		}
		if err := s.intents.Clear(intent.InviteID); err != nil {
			return fmt.Errorf("dropbox: clearing delivery intent: %w", err)
		}
	}
	return nil
}

// ConsumeInvite is the owner side: it fetches the sealed ContactInitPayload
// for inviteID, opens it with the owner's identity key, runs X3DH as the
// initiator against the guest's bundle, and persists the resulting ratchet
// session. The conversation id is derived deterministically from the root
// key so both sides eventually agree on it once the first message (which
// carries the X3DH handshake parameters in its header) reaches the guest.
func (s *Service) ConsumeInvite(
	ctx context.Context,
	passphrase string,
	inviteID string,
) (domain.PeerIdentity, domain.ConversationID, error) {
	sealed, err := s.client.InvitesConsume(ctx, inviteID)
	if err != nil {
		return domain.PeerIdentity{}, "", err
	}

	ownerIdentity, err := s.identity.LoadIdentity(passphrase)
	if err != nil {
		return domain.PeerIdentity{}, "", fmt.Errorf("dropbox: loading identity: %w", err)
	}

	var payload domain.ContactInitPayload
	if err := openAnonymous(ownerIdentity.XPriv, sealed, &payload); err != nil {
		return domain.PeerIdentity{}, "", fmt.Errorf("dropbox: opening contact-init: %w", err)
	}

	rootKey, _, _, _, err := x3dh.InitiatorRoot(ownerIdentity, payload.GuestBundle)
	if err != nil {
		return domain.PeerIdentity{}, "", fmt.Errorf("dropbox: x3dh: %w", err)
	}

	conversationID := deriveConversationID(rootKey)

	holder, err := ratchet.InitAsInitiator(rootKey, s.deviceID, conversationID, payload.GuestBundle.SignedPreKey)
	if err != nil {
		return domain.PeerIdentity{}, "", fmt.Errorf("dropbox: initializing ratchet: %w", err)
	}

	peer := domain.PeerIdentity{AccountDigest: payload.GuestAccountDigest, DeviceID: payload.GuestDeviceID}
	s.snapshots.Put(peer.Key(), &holder)
	if _, _, err := s.snapshots.Persist(peer.Key(), session.EncodeSnapshot(holder), s.deviceID); err != nil {
		return domain.PeerIdentity{}, "", fmt.Errorf("dropbox: persisting session: %w", err)
	}

	if err := s.client.InvitesConfirm(ctx, inviteID); err != nil {
		return domain.PeerIdentity{}, "", fmt.Errorf("dropbox: confirming: %w", err)
	}

	return peer, conversationID, nil
}

func deriveConversationID(rootKey []byte) domain.ConversationID {
	sum := sha256.Sum256(rootKey)
	return domain.ConversationID("conv-" + hex.EncodeToString(sum[:16]))
}

var _ domain.InviteService = (*Service)(nil)
