package types

// Direction distinguishes a vault entry created for our own outgoing
// message from one created for a message we received.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// VaultEntry is a single AEAD-wrapped per-message key as stored on the
// key-vault server. WrappedMessageKey is the message key sealed under the
// local master key; WrapContext records the AAD used for that seal so a
// later unwrap can reconstruct it exactly.
type VaultEntry struct {
	ConversationID    ConversationID `json:"conversation_id"`
	MessageID         string         `json:"message_id"`
	SenderDeviceID    string         `json:"sender_device_id"`
	TargetDeviceID    string         `json:"target_device_id"`
	Direction         Direction      `json:"direction"`
	HeaderCounter     uint64         `json:"header_counter"`
	WrappedMessageKey []byte         `json:"wrapped_mk"`
	WrapContext       []byte         `json:"wrap_context"`
	DRState           []byte         `json:"dr_state,omitempty"`
}

// LatestState is the per-direction high-water mark returned by the vault's
// latestState endpoint, used by the receive pipeline for gap detection.
type LatestState struct {
	ConversationID      ConversationID `json:"conversation_id"`
	SenderDeviceID      string         `json:"sender_device_id"`
	HighestOutgoing     uint64         `json:"highest_outgoing"`
	HighestIncoming     uint64         `json:"highest_incoming"`
}
