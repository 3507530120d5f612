package dropbox

import (
	"crypto/sha256"
	"encoding/json"

	"golang.org/x/crypto/hkdf"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const hkdfInfo = "ciphera-invite-dropbox-v1"

// sealAnonymous encrypts payload to recipientPub under a fresh ephemeral
// X25519 keypair: an anonymous-sender seal, not an X3DH session. The
// ephemeral public key travels alongside the ciphertext so the recipient
// can redo the DH and derive the same key.
func sealAnonymous(inviteID string, recipientPub domain.X25519Public, payload any) (domain.SealedEnvelope, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.SealedEnvelope{}, err
	}
	shared, err := crypto.DH(ephPriv, recipientPub)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}
	key := deriveKey(shared[:], inviteID)
	crypto.Wipe(shared[:])

	nonce, ciphertext, err := crypto.SealWithKey(key, []byte(inviteID), plaintext)
	if err != nil {
		return domain.SealedEnvelope{}, err
	}

	return domain.SealedEnvelope{
		InviteID:     inviteID,
		EphemeralPub: ephPub.Slice(),
		Nonce:        nonce,
		Ciphertext:   ciphertext,
	}, nil
}

// openAnonymous reverses sealAnonymous using the recipient's static private
// key, unmarshalling the recovered plaintext into out.
func openAnonymous(recipientPriv domain.X25519Private, envelope domain.SealedEnvelope, out any) error {
	var ephPub domain.X25519Public
	copy(ephPub[:], envelope.EphemeralPub)

	shared, err := crypto.DH(recipientPriv, ephPub)
	if err != nil {
		return err
	}
	key := deriveKey(shared[:], envelope.InviteID)
	crypto.Wipe(shared[:])

	plaintext, err := crypto.OpenWithKey(key, []byte(envelope.InviteID), envelope.Nonce, envelope.Ciphertext)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, out)
}

func deriveKey(shared []byte, inviteID string) []byte {
	hk := hkdf.New(sha256.New, shared, []byte(inviteID), []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := hk.Read(key); err != nil {
		panic(err) // hkdf.Read only fails past its output limit, unreachable here
	}
	return key
}
