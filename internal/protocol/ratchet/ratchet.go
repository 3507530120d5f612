// Package ratchet implements the Double Ratchet algorithm following
// Signal's design, extended with the monotone transport counters
// (NsTotal/NrTotal) the outbox and receive pipeline depend on.
package ratchet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const (
	aeadKeySize = chacha20poly1305.KeySize
	nonceSize   = chacha20poly1305.NonceSize

	// SkipWindow bounds the number of skipped-message keys retained per
	// chain before TooManySkipped is returned.
	SkipWindow = 1024
)

var (
	errChainUninitialised = errors.New("ratchet: chain key uninitialised")

	// ErrCounterReplayOrGap is returned when header.n < Nr and no skipped
	// key covers it.
	ErrCounterReplayOrGap = errors.New("ratchet: counter replay or gap")
	// ErrTooManySkipped is returned when a single DH ratchet would need to
	// skip more than SkipWindow keys.
	ErrTooManySkipped = errors.New("ratchet: too many skipped messages")
	// ErrDecryptAuthFail is returned on AEAD tag mismatch.
	ErrDecryptAuthFail = errors.New("ratchet: decrypt authentication failed")
)

// InitAsInitiator seeds the send chain from an X3DH root key and the
// peer's first ratchet public (their signed prekey). role=initiator.
func InitAsInitiator(root []byte, selfDeviceID string, conversationID domain.ConversationID, peerRatchetPub domain.X25519Public) (domain.RatchetHolder, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetHolder{}, err
	}

	dh, err := crypto.DH(priv, peerRatchetPub)
	if err != nil {
		return domain.RatchetHolder{}, err
	}
	newRoot, sendCK := kdfRK(root, dh[:])
	crypto.Wipe(dh[:])

	return domain.RatchetHolder{
		RootKey:                 newRoot,
		DiffieHellmanPrivate:    priv,
		DiffieHellmanPublic:     pub,
		PeerDiffieHellmanPublic: peerRatchetPub,
		SendChainKey:            sendCK,
		Role:                    domain.RoleInitiator,
		SelfDeviceID:            selfDeviceID,
		ConversationID:          conversationID,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// InitAsResponder seeds the receive chain from an X3DH root key and the
// sender's current ratchet public (their ephemeral key). role=responder.
// The responder's own ratchet keypair is the signed-prekey pair it
// published; it cannot send until it has received at least once or
// performs a ratchet step of its own.
func InitAsResponder(root []byte, selfPriv domain.X25519Private, selfPub domain.X25519Public, senderRatchetPub domain.X25519Public, selfDeviceID string, conversationID domain.ConversationID) (domain.RatchetHolder, error) {
	dh, err := crypto.DH(selfPriv, senderRatchetPub)
	if err != nil {
		return domain.RatchetHolder{}, err
	}
	newRoot, recvCK := kdfRK(root, dh[:])
	crypto.Wipe(dh[:])

	return domain.RatchetHolder{
		RootKey:                 newRoot,
		DiffieHellmanPrivate:    selfPriv,
		DiffieHellmanPublic:     selfPub,
		PeerDiffieHellmanPublic: senderRatchetPub,
		ReceiveChainKey:         recvCK,
		Role:                    domain.RoleResponder,
		SelfDeviceID:            selfDeviceID,
		ConversationID:          conversationID,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// Encrypt implements drEncrypt: step the send ratchet if pending or
// uninitialised, derive the next message key, advance Ns/NsTotal by
// exactly one, and AEAD-seal plaintext. NsTotal is the only thing that can
// advance it — a DH ratchet performed here never touches it.
//
// The returned mk is the raw per-message key that sealed this ciphertext.
// Callers that need it (the outbox wraps it into the key vault) own it from
// here on and must crypto.Wipe it once they're done; Encrypt no longer
// wipes it itself.
func Encrypt(holder *domain.RatchetHolder, associatedData, plaintext []byte) (header domain.RatchetHeader, ciphertext, iv, mk []byte, err error) {
	if holder == nil {
		return domain.RatchetHeader{}, nil, nil, nil, errors.New("ratchet: holder uninitialised")
	}

	if holder.PendingSendRatchet || holder.SendChainKey == nil {
		if err := ratchetSendStep(holder); err != nil {
			return domain.RatchetHeader{}, nil, nil, nil, err
		}
	}

	mk, err = kdfCKSend(holder)
	if err != nil {
		return domain.RatchetHeader{}, nil, nil, nil, err
	}

	header = domain.RatchetHeader{
		DiffieHellmanPublicKey: holder.DiffieHellmanPublic.Slice(),
		PreviousChainLength:    holder.PreviousChainLength,
		MessageIndex:           holder.SendMessageIndex,
		DeviceID:               holder.SelfDeviceID,
	}

	iv = make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return domain.RatchetHeader{}, nil, nil, nil, err
	}

	ciphertext, err = seal(mk, header, iv, associatedData, plaintext)
	if err != nil {
		crypto.Wipe(mk)
		return domain.RatchetHeader{}, nil, nil, nil, err
	}

	holder.SendMessageIndex++
	holder.SendCounterTotal++
	return header, ciphertext, iv, mk, nil
}

// ratchetSendStep performs the DH ratchet for the next send chain.
// NsTotal/NrTotal are untouched — only Ns/PN/the key material move.
func ratchetSendStep(holder *domain.RatchetHolder) error {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh, err := crypto.DH(priv, holder.PeerDiffieHellmanPublic)
	if err != nil {
		return err
	}
	newRoot, sendCK := kdfRK(holder.RootKey, dh[:])
	crypto.Wipe(dh[:])

	holder.PreviousChainLength = holder.SendMessageIndex
	holder.SendMessageIndex = 0
	holder.RootKey = newRoot
	holder.DiffieHellmanPrivate = priv
	holder.DiffieHellmanPublic = pub
	holder.SendChainKey = sendCK
	holder.PendingSendRatchet = false
	return nil
}

// Ratchet performs the receive-side DH step in isolation (used by tests and
// by Decrypt internally): given a new peer ratchet public, derive the new
// receive chain and mark PendingSendRatchet so the next Encrypt rotates the
// send chain lazily. NsTotal/NrTotal are untouched.
func Ratchet(holder *domain.RatchetHolder, peerRatchetPub domain.X25519Public) error {
	dh, err := crypto.DH(holder.DiffieHellmanPrivate, peerRatchetPub)
	if err != nil {
		return err
	}
	newRoot, recvCK := kdfRK(holder.RootKey, dh[:])
	crypto.Wipe(dh[:])

	holder.RootKey = newRoot
	holder.ReceiveChainKey = recvCK
	holder.PeerDiffieHellmanPublic = peerRatchetPub
	holder.ReceiveMessageIndex = 0
	holder.PendingSendRatchet = true
	return nil
}

// Decrypt implements drDecrypt. All errors are terminal for this message:
// no retry with alternative keys, no rollback of already-advanced state.
func Decrypt(holder *domain.RatchetHolder, associatedData []byte, header domain.RatchetHeader, iv, ciphertext []byte) ([]byte, error) {
	if holder == nil {
		return nil, errors.New("ratchet: holder uninitialised")
	}
	if holder.SkippedKeys == nil {
		holder.SkippedKeys = make(map[string][]byte)
	}

	if !equal32(holder.PeerDiffieHellmanPublic.Slice(), header.DiffieHellmanPublicKey) {
		if err := skipUntil(holder, header.PreviousChainLength); err != nil {
			return nil, err
		}
		var peerPub domain.X25519Public
		copy(peerPub[:], header.DiffieHellmanPublicKey)
		if err := Ratchet(holder, peerPub); err != nil {
			return nil, err
		}
	}

	keyID := skippedKeyID(holder.PeerDiffieHellmanPublic, header.MessageIndex)
	if header.MessageIndex < holder.ReceiveMessageIndex {
		mk, ok := holder.SkippedKeys[keyID]
		if !ok {
			return nil, ErrCounterReplayOrGap
		}
		delete(holder.SkippedKeys, keyID)
		plaintext, err := open(mk, header, iv, associatedData, ciphertext)
		crypto.Wipe(mk)
		if err != nil {
			return nil, ErrDecryptAuthFail
		}
		return plaintext, nil
	}

	if err := skipUntil(holder, header.MessageIndex); err != nil {
		return nil, err
	}

	mk, err := kdfCKRecv(holder)
	if err != nil {
		return nil, err
	}
	plaintext, err := open(mk, header, iv, associatedData, ciphertext)
	crypto.Wipe(mk)
	if err != nil {
		return nil, ErrDecryptAuthFail
	}

	holder.ReceiveMessageIndex = header.MessageIndex + 1
	holder.ReceiveCounterTotal++
	return plaintext, nil
}

// DecryptWithMessageKey opens ciphertext directly under a message key
// recovered out-of-band (vault replay, spec §4.9), bypassing chain
// derivation entirely. It neither reads nor mutates holder state, so it is
// safe to use when the ratchet chain can no longer reach this message (the
// skip window has long since moved past it) but the key vault still holds
// the wrapped key for it.
func DecryptWithMessageKey(mk []byte, associatedData []byte, header domain.RatchetHeader, iv, ciphertext []byte) ([]byte, error) {
	plaintext, err := open(mk, header, iv, associatedData, ciphertext)
	if err != nil {
		return nil, ErrDecryptAuthFail
	}
	return plaintext, nil
}

// --- Helpers ---

func kdfRK(root, dh []byte) (newRoot, ck []byte) {
	hk := hkdf.New(sha256.New, dh, root, []byte("DR|rk"))
	newRoot = make([]byte, 32)
	ck = make([]byte, 32)
	io.ReadFull(hk, newRoot)
	io.ReadFull(hk, ck)
	return
}

func kdfCKSend(holder *domain.RatchetHolder) ([]byte, error) {
	if holder.SendChainKey == nil {
		return nil, errChainUninitialised
	}
	hk := hkdf.New(sha256.New, holder.SendChainKey, nil, []byte("DR|ck"))
	nextCK := make([]byte, 32)
	mk := make([]byte, 32)
	io.ReadFull(hk, nextCK)
	io.ReadFull(hk, mk)
	holder.SendChainKey = nextCK
	return mk, nil
}

func kdfCKRecv(holder *domain.RatchetHolder) ([]byte, error) {
	if holder.ReceiveChainKey == nil {
		return nil, errChainUninitialised
	}
	hk := hkdf.New(sha256.New, holder.ReceiveChainKey, nil, []byte("DR|ck"))
	nextCK := make([]byte, 32)
	mk := make([]byte, 32)
	io.ReadFull(hk, nextCK)
	io.ReadFull(hk, mk)
	holder.ReceiveChainKey = nextCK
	return mk, nil
}

func seal(mk []byte, header domain.RatchetHeader, iv, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	aad := append(append([]byte{}, ad...), headerBytes(header)...)
	aad = append(aad, iv...)
	return aead.Seal(nil, iv, plaintext, aad), nil
}

func open(mk []byte, header domain.RatchetHeader, iv, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	aad := append(append([]byte{}, ad...), headerBytes(header)...)
	aad = append(aad, iv...)
	return aead.Open(nil, iv, ciphertext, aad)
}

// canonicalHeader mirrors domain.RatchetHeader but with its fields declared
// in the lexicographic order of their JSON tags (device_id, ek_pub, n, pn),
// since encoding/json emits struct fields in declaration order. This is
// what headerBytes marshals, giving the canonical key-ordered JSON the wire
// format's AAD is defined over.
type canonicalHeader struct {
	DeviceID string `json:"device_id"`
	EKPub    []byte `json:"ek_pub"`
	N        uint32 `json:"n"`
	PN       uint32 `json:"pn"`
}

// headerBytes canonically serializes the ratchet header as the
// lexicographically-key-ordered JSON object used as AEAD associated data.
func headerBytes(h domain.RatchetHeader) []byte {
	out, err := json.Marshal(canonicalHeader{
		DeviceID: h.DeviceID,
		EKPub:    h.DiffieHellmanPublicKey,
		N:        h.MessageIndex,
		PN:       h.PreviousChainLength,
	})
	if err != nil {
		panic("ratchet: canonical header must always marshal: " + err.Error())
	}
	return out
}

// skipUntil derives and stores skipped message keys on the current receive
// chain up to (but not including) target, bounded by SkipWindow.
func skipUntil(holder *domain.RatchetHolder, target uint32) error {
	if holder.ReceiveChainKey == nil {
		holder.ReceiveMessageIndex = target
		return nil
	}
	if uint64(target)-uint64(holder.ReceiveMessageIndex) > SkipWindow {
		return ErrTooManySkipped
	}
	for holder.ReceiveMessageIndex < target {
		if len(holder.SkippedKeys) >= SkipWindow {
			return ErrTooManySkipped
		}
		mk, err := kdfCKRecv(holder)
		if err != nil {
			return err
		}
		holder.SkippedKeys[skippedKeyID(holder.PeerDiffieHellmanPublic, holder.ReceiveMessageIndex)] = mk
		holder.ReceiveMessageIndex++
	}
	return nil
}

func skippedKeyID(pub domain.X25519Public, n uint32) string {
	var buf [36]byte
	copy(buf[:32], pub[:])
	binary.BigEndian.PutUint32(buf[32:], n)
	return string(buf[:])
}

func equal32(a, b []byte) bool {
	if len(a) != 32 || len(b) != 32 {
		return false
	}
	var v byte
	for i := range 32 {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
