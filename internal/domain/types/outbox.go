package types

// OutboxJob is one pending send in a per-(conversationId, senderDeviceId)
// FIFO. Jobs sharing the same MessageID are idempotent.
type OutboxJob struct {
	MessageID      string         `json:"message_id"`
	ConversationID ConversationID `json:"conversation_id"`
	SenderDeviceID string         `json:"sender_device_id"`
	Receiver       PeerIdentity   `json:"receiver"`
	Plaintext      []byte         `json:"plaintext"`
	MessageType    MessageType    `json:"msg_type"`
	HeaderReserved *uint64        `json:"header_reserved,omitempty"`
	EnqueuedAt     int64          `json:"enqueued_at"`
}

// SendOutcome is what processOne ultimately resolves a job to.
type SendOutcome struct {
	Sent     bool
	Queued   bool
	Replaced bool

	ServerMessageID string
	Counter         uint64

	JobID string

	NewMessageID      string
	ExpectedCounter   uint64
}

// PendingVaultPut is a failed vault put parked for exponential retry,
// deduped on (ConversationID, MessageID, SenderDeviceID).
type PendingVaultPut struct {
	Entry       VaultEntry `json:"entry"`
	Attempts    int        `json:"attempts"`
	NextAttempt int64      `json:"next_attempt"`
}
