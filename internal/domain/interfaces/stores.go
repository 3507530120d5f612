package interfaces

import (
	"context"

	domaintypes "ciphera/internal/domain/types"
)

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(
		id domaintypes.SignedPreKeyID,
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
	) error
	LoadSignedPreKey(
		id domaintypes.SignedPreKeyID,
	) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
		ok bool,
		err error,
	)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		ok bool,
		err error,
	)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
	CountOneTimePreKeys() (int, error)
	NextOneTimePreKeyID() (domaintypes.OneTimePreKeyID, error)

	// Current signed pre-key selection
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// PreKeyBundleStore caches the last bundle you registered.
type PreKeyBundleStore interface {
	SavePreKeyBundle(bundle domaintypes.PreKeyBundle) error
	LoadPreKeyBundle(username domaintypes.Username) (domaintypes.PreKeyBundle, bool, error)
}

// SessionStore persists established X3DH sessions (pre-ratchet root key
// and the prekey ids consumed to reach it).
type SessionStore interface {
	SaveSession(peer domaintypes.Username, session domaintypes.Session) error
	LoadSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
}

// RatchetStore keeps per-peer Double-Ratchet state.
type RatchetStore interface {
	SaveConversation(peer domaintypes.ConversationID, conversation domaintypes.Conversation) error
	LoadConversation(peer domaintypes.ConversationID) (domaintypes.Conversation, bool, error)
}

// AccountStore persists per-relay account profiles.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	LoadAccountProfile(
		serverURL string,
		username domaintypes.Username,
	) (domaintypes.AccountProfile, bool, error)
}

// SnapshotStore is the C5 session store: an in-memory map of peerKey to
// RatchetHolder plus downgrade-resistant persistence of its encoded
// RatchetSnapshot to the contact-secrets store.
//
// Get returns the canonical in-memory holder for peerKey itself, not a
// clone: mutations through the returned pointer change the live state.
// Persist applies the downgrade-protection rules of spec §4.5: it returns
// written=false with a reason string when the incoming snapshot must not
// overwrite the existing one.
type SnapshotStore interface {
	Get(peerKey string) (*domaintypes.RatchetHolder, bool)
	Put(peerKey string, holder *domaintypes.RatchetHolder)
	Delete(peerKey string)

	Persist(peerKey string, snapshot domaintypes.RatchetSnapshot, selfDeviceID string) (written bool, reason string, err error)
	Load(peerKey string) (domaintypes.RatchetSnapshot, bool, error)
	Quarantine(peerKey string, reason string) error
}

// VaultClient wraps the five key-vault server endpoints: put, get and
// delete of wrapped message keys, the per-message fetch count, and the
// latest-state query used for gap detection.
type VaultClient interface {
	Put(ctx context.Context, entry domaintypes.VaultEntry) error
	Get(ctx context.Context, conversationID domaintypes.ConversationID, senderDeviceID, messageID string) (domaintypes.VaultEntry, bool, error)
	Count(ctx context.Context, conversationID domaintypes.ConversationID, messageID string) (int, error)
	LatestState(ctx context.Context, conversationID domaintypes.ConversationID, senderDeviceID string) (domaintypes.LatestState, error)
	Delete(ctx context.Context, conversationID domaintypes.ConversationID, messageID, senderDeviceID string) error
}

// DropboxClient wraps the six invite dropbox endpoints.
type DropboxClient interface {
	InvitesCreate(ctx context.Context, ownerBundle domaintypes.PreKeyBundle, ttl int64) (domaintypes.InviteRecord, error)
	InvitesDeliver(ctx context.Context, inviteID string, envelope domaintypes.SealedEnvelope) error
	InvitesConsume(ctx context.Context, inviteID string) (domaintypes.SealedEnvelope, error)
	InvitesConfirm(ctx context.Context, inviteID string) error
	InvitesStatus(ctx context.Context, inviteID string) (string, error)
	InvitesLookupCode(ctx context.Context, pairingCode string) (string, error)
}

// OutboxStore durably persists the per-peer FIFO of pending sends plus the
// pending-vault-put retry queue.
type OutboxStore interface {
	Enqueue(job domaintypes.OutboxJob) error
	Dequeue(conversationID domaintypes.ConversationID, senderDeviceID string) (domaintypes.OutboxJob, bool, error)
	Remove(messageID string) error

	EnqueuePendingVaultPut(p domaintypes.PendingVaultPut) error
	DuePendingVaultPuts(now int64) ([]domaintypes.PendingVaultPut, error)
	RemovePendingVaultPut(conversationID domaintypes.ConversationID, messageID, senderDeviceID string) error
}

// BackupClient uploads/downloads the single AEAD-sealed contact-secrets
// blob.
type BackupClient interface {
	Upload(ctx context.Context, blob domaintypes.BackupBlob) error
	Download(ctx context.Context) (domaintypes.BackupBlob, bool, error)
}
