package types

import "fmt"

// PeerIdentity names one device belonging to one account: a 64-hex
// uppercase account digest plus an opaque device id. Self identity has the
// same shape. A peer key containing only a digest is invalid for any write
// operation.
type PeerIdentity struct {
	AccountDigest string `json:"account_digest"`
	DeviceID      string `json:"device_id"`
}

// Key returns the canonical map key "<digest>::<deviceId>" used to index
// ratchet holders, outbox queues, and the receive pipeline's mutex layers.
func (p PeerIdentity) Key() string {
	return fmt.Sprintf("%s::%s", p.AccountDigest, p.DeviceID)
}

// Valid reports whether both halves of the identity are present.
func (p PeerIdentity) Valid() bool {
	return p.AccountDigest != "" && p.DeviceID != ""
}

// ConversationHandle names a conversation and carries the responder
// bootstrap bundle until a live ratchet session exists. ConversationID is
// deterministically derived from the root key so both sides compute the
// same value; ProvisionalID (form "contacts-<digest>") may stand in before
// a real conversation id is known and must never be persisted once the
// real id is.
type ConversationHandle struct {
	ConversationID    ConversationID `json:"conversation_id"`
	TokenB64          string         `json:"token_b64"`
	PeerAccountDigest string         `json:"peer_account_digest"`
	PeerDeviceID      string         `json:"peer_device_id"`
	DRInit            *PreKeyMessage `json:"dr_init,omitempty"`
}

// ProvisionalConversationID returns the placeholder id used before a real
// conversation id has been derived from an established root key.
func ProvisionalConversationID(peerAccountDigest string) ConversationID {
	return ConversationID("contacts-" + peerAccountDigest)
}
