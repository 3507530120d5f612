package vault

import (
	"encoding/json"
	"fmt"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// wrapContext is the canonical AAD bound to a wrapped per-message key (spec
// §4.7.3): context={conversationId, messageId, direction}. Its JSON
// encoding is stored verbatim on the VaultEntry as WrapContext so a later
// unwrap on any device reconstructs the exact same AAD.
type wrapContext struct {
	ConversationID domain.ConversationID `json:"conversation_id"`
	MessageID      string                `json:"message_id"`
	Direction      domain.Direction      `json:"direction"`
}

// WrapMessageKey AEAD-seals mk under masterKey, binding it to
// (conversationID, messageID, direction). The returned wrapped blob is
// nonce||ciphertext.
func WrapMessageKey(
	masterKey []byte,
	conversationID domain.ConversationID,
	messageID string,
	direction domain.Direction,
	mk []byte,
) (wrapped, ad []byte, err error) {
	ad, err = json.Marshal(wrapContext{ConversationID: conversationID, MessageID: messageID, Direction: direction})
	if err != nil {
		return nil, nil, fmt.Errorf("vault: encoding wrap context: %w", err)
	}
	nonce, ciphertext, err := crypto.SealWithKey(masterKey, ad, mk)
	if err != nil {
		return nil, nil, fmt.Errorf("vault: wrapping message key: %w", err)
	}
	return append(nonce, ciphertext...), ad, nil
}

// UnwrapMessageKey reverses WrapMessageKey, recovering the raw per-message
// key from entry for vault-assisted decrypt.
func UnwrapMessageKey(masterKey []byte, entry domain.VaultEntry) ([]byte, error) {
	if len(entry.WrappedMessageKey) < crypto.NonceBytes {
		return nil, fmt.Errorf("vault: wrapped message key too short")
	}
	nonce := entry.WrappedMessageKey[:crypto.NonceBytes]
	ciphertext := entry.WrappedMessageKey[crypto.NonceBytes:]
	mk, err := crypto.OpenWithKey(masterKey, entry.WrapContext, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("vault: unwrapping message key: %w", err)
	}
	return mk, nil
}
