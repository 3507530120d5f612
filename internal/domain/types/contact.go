package types

// ContactSecret is the persisted, per-peer bundle of everything needed to
// resume a conversation: role, conversation handle, ratchet snapshot, and
// lightweight profile fields. Device-keyed sub-records (by PeerDeviceID)
// let multiple local devices share one contact without confusing roles.
type ContactSecret struct {
	Role               Role             `json:"role"`
	ConversationToken  string           `json:"conversation_token"`
	ConversationID     ConversationID   `json:"conversation_id"`
	ConversationDRInit *PreKeyMessage   `json:"conversation_dr_init,omitempty"`
	DRState            *RatchetSnapshot `json:"dr_state,omitempty"`
	Nickname           string           `json:"nickname,omitempty"`
	Avatar             string           `json:"avatar,omitempty"`
	PeerDeviceID       string           `json:"peer_device_id"`
	UpdatedAt          int64            `json:"updated_at"`
}

// BackupBlob is the versioned, AEAD-sealed serialization of the full
// contact-secrets map uploaded to the server for recovery. SaltB64 is the
// Argon2id salt used to derive the sealing key from the passphrase; each
// upload mints a fresh one.
type BackupBlob struct {
	Version   int    `json:"version"`
	SaltB64   string `json:"salt_b64"`
	NonceB64  string `json:"nonce_b64"`
	CipherB64 string `json:"cipher_b64"`
	UpdatedAt int64  `json:"updated_at"`
}
