package domain

import (
	interfaces "ciphera/internal/domain/interfaces"
	types "ciphera/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact
// imports.
type (
	Username            = types.Username
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	ConversationID      = types.ConversationID
	Identity            = types.Identity
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	PreKeyMessage       = types.PreKeyMessage
	Envelope            = types.Envelope
	EnvelopeMeta        = types.EnvelopeMeta
	MessageType         = types.MessageType
	DecryptedMessage    = types.DecryptedMessage
	RatchetHeader       = types.RatchetHeader
	RatchetHolder       = types.RatchetHolder
	RatchetSnapshot     = types.RatchetSnapshot
	Conversation        = types.Conversation
	Session             = types.Session
	AccountProfile      = types.AccountProfile
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	Role                = types.Role
	PeerIdentity        = types.PeerIdentity
	ConversationHandle  = types.ConversationHandle
	Direction           = types.Direction
	VaultEntry          = types.VaultEntry
	LatestState         = types.LatestState
	ContactSecret       = types.ContactSecret
	BackupBlob          = types.BackupBlob
	InviteRecord        = types.InviteRecord
	ContactInitPayload  = types.ContactInitPayload
	ContactSharePayload = types.ContactSharePayload
	GuestProfile        = types.GuestProfile
	SealedEnvelope      = types.SealedEnvelope
	DeliveryIntent      = types.DeliveryIntent
	OutboxJob           = types.OutboxJob
	SendOutcome         = types.SendOutcome
	PendingVaultPut     = types.PendingVaultPut
)

const (
	RoleInitiator = types.RoleInitiator
	RoleResponder = types.RoleResponder

	DirectionOutgoing = types.DirectionOutgoing
	DirectionIncoming = types.DirectionIncoming

	MessageTypeText              = types.MessageTypeText
	MessageTypeMedia             = types.MessageTypeMedia
	MessageTypeContactShare      = types.MessageTypeContactShare
	MessageTypeCallLog           = types.MessageTypeCallLog
	MessageTypeConversationDeleted = types.MessageTypeConversationDeleted
	MessageTypeSystem            = types.MessageTypeSystem
)

var ProvisionalConversationID = types.ProvisionalConversationID

// Interface aliases expose domain interfaces from the interfaces
// subpackage.
type (
	IdentityService   = interfaces.IdentityService
	PreKeyService     = interfaces.PreKeyService
	SessionService    = interfaces.SessionService
	MessageService    = interfaces.MessageService
	OutboxService     = interfaces.OutboxService
	ReceivePipeline   = interfaces.ReceivePipeline
	InviteService     = interfaces.InviteService
	BackupService     = interfaces.BackupService
	RelayClient       = interfaces.RelayClient
	IdentityStore     = interfaces.IdentityStore
	PreKeyStore       = interfaces.PreKeyStore
	PreKeyBundleStore = interfaces.PreKeyBundleStore
	SessionStore      = interfaces.SessionStore
	RatchetStore      = interfaces.RatchetStore
	AccountStore      = interfaces.AccountStore
	SnapshotStore     = interfaces.SnapshotStore
	VaultClient       = interfaces.VaultClient
	DropboxClient     = interfaces.DropboxClient
	OutboxStore       = interfaces.OutboxStore
	BackupClient      = interfaces.BackupClient
)
