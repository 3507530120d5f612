package interfaces

import (
	"context"

	domaintypes "ciphera/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates and assembles your pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(passphrase string, count int) (
		domaintypes.X25519Public,
		[]domaintypes.X25519Public,
		error,
	)
	LoadPreKeyBundle(
		passphrase string,
		username domaintypes.Username,
		serverURL string,
	) (
		domaintypes.PreKeyBundle,
		error,
	)
	RefreshIfBelow(passphrase string, threshold int) (int, error)
}

// SessionService establishes or retrieves an X3DH session.
type SessionService interface {
	InitiateSession(
		ctx context.Context,
		passphrase string,
		peer domaintypes.Username,
	) (domaintypes.Session, error)
	GetSession(peer domaintypes.Username) (domaintypes.Session, bool, error)
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	SendMessage(
		ctx context.Context,
		passphrase string,
		from domaintypes.Username,
		to domaintypes.Username,
		plaintext []byte,
	) error
	ReceiveMessage(
		ctx context.Context,
		passphrase string,
		me domaintypes.Username,
		limit int,
	) ([]domaintypes.DecryptedMessage, error)
}

// OutboxService drives the per-peer FIFO: enqueue, process one job with
// counter reservation/rollback semantics, and the CounterTooLow repair
// flow. passphrase unlocks the master key used to wrap the per-message key
// submitted to the key vault alongside the send.
type OutboxService interface {
	Enqueue(job domaintypes.OutboxJob) error
	ProcessOne(ctx context.Context, passphrase string, conversationID domaintypes.ConversationID, senderDeviceID string) (domaintypes.SendOutcome, error)
}

// ReceivePipeline is the C9 decrypt scheduler: live arrivals, server
// catch-up, deduplication, and vault-assisted replay. passphrase unlocks
// the master key used to unwrap a vault entry's per-message key when a
// gap has moved beyond what the ratchet's own skip window can bridge.
type ReceivePipeline interface {
	HandleIncoming(ctx context.Context, passphrase string, peer domaintypes.PeerIdentity, env domaintypes.Envelope) (*domaintypes.DecryptedMessage, error)
	CatchUp(ctx context.Context, passphrase string, peer domaintypes.PeerIdentity, fromCounter uint64) ([]domaintypes.DecryptedMessage, error)
}

// InviteService drives the C6 invite dropbox from both the owner and the
// guest side.
type InviteService interface {
	CreateInvite(ctx context.Context, passphrase string, ttl int64) (domaintypes.InviteRecord, error)
	DeliverContactInit(ctx context.Context, passphrase string, inviteID string, ownerBundle domaintypes.PreKeyBundle, guest domaintypes.PeerIdentity, guestProfile domaintypes.GuestProfile) error
	ConsumeInvite(ctx context.Context, passphrase string, inviteID string) (domaintypes.PeerIdentity, domaintypes.ConversationID, error)
}

// BackupService drives the C10 contact-secrets backup blob.
type BackupService interface {
	Upload(ctx context.Context, passphrase string) error
	Hydrate(ctx context.Context, passphrase string) (int, error)
}
