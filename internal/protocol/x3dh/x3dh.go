// Package x3dh implements the Extended Triple Diffie-Hellman key agreement
// (C3): the initiator and responder sides that derive a shared root key
// and identify which signed/one-time prekeys were consumed to reach it.
package x3dh

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/hkdf"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/util/memzero"
)

const hkdfInfo = "ciphera-x3dh"

var (
	// ErrBadSignature is returned when the peer's signed prekey signature
	// does not verify under their identity signing key.
	ErrBadSignature = errors.New("x3dh: signed prekey signature invalid")
	// ErrUnknownOneTimePreKey is returned when the responder has no record
	// of the one-time prekey id the initiator claims to have used.
	ErrUnknownOneTimePreKey = errors.New("x3dh: one-time prekey id unknown")
)

// VerifySPK checks the signed prekey signature against the peer's Ed25519
// identity signing key.
func VerifySPK(signKey domain.Ed25519Public, signedPreKey domain.X25519Public, sig []byte) bool {
	return crypto.VerifyEd25519(signKey, signedPreKey.Slice(), sig)
}

// InitiatorRoot runs X3DH as the initiator against peerBundle, generating a
// fresh ephemeral key. It verifies the peer's signed-prekey signature
// first and fails closed if it does not verify.
//
// DH1 = DH(selfIK, peerSPK); DH2 = DH(EK, peerIK); DH3 = DH(EK, peerSPK);
// DH4 = DH(EK, peerOPK) when an OPK is available. rootKey = HKDF(DH1 ||
// DH2 || DH3 [|| DH4]).
func InitiatorRoot(self domain.Identity, peerBundle domain.PreKeyBundle) (rootKey []byte, spkID domain.SignedPreKeyID, opkID domain.OneTimePreKeyID, ephemeralPub domain.X25519Public, err error) {
	if !VerifySPK(peerBundle.SigningKey, peerBundle.SignedPreKey, peerBundle.SignedPreKeySignature) {
		return nil, "", "", ephemeralPub, ErrBadSignature
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, "", "", ephemeralPub, err
	}

	dh1, err := crypto.DH(self.XPriv, peerBundle.SignedPreKey)
	if err != nil {
		return nil, "", "", ephemeralPub, err
	}
	dh2, err := crypto.DH(ephPriv, peerBundle.IdentityKey)
	if err != nil {
		return nil, "", "", ephemeralPub, err
	}
	dh3, err := crypto.DH(ephPriv, peerBundle.SignedPreKey)
	if err != nil {
		return nil, "", "", ephemeralPub, err
	}

	ikm := make([]byte, 0, 32*4)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)

	var chosenOPK domain.OneTimePreKeyID
	if len(peerBundle.OneTimePreKeys) > 0 {
		opk := peerBundle.OneTimePreKeys[0]
		dh4, err := crypto.DH(ephPriv, opk.Pub)
		if err != nil {
			return nil, "", "", ephemeralPub, err
		}
		ikm = append(ikm, dh4[:]...)
		chosenOPK = opk.ID
	}

	root := hkdfSHA256(ikm, hkdfInfo, 32)
	memzero.Zero(ikm)
	return root, peerBundle.SignedPreKeyID, chosenOPK, ephPub, nil
}

// ResponderRoot recomputes the same root key from the responder's side
// using the signed-prekey private scalar (and the one-time prekey scalar,
// if the initiator's PreKeyMessage names one) plus the initiator's
// PreKeyMessage.
func ResponderRoot(self domain.Identity, signedPreKeyPriv domain.X25519Private, oneTimePreKeyPriv *domain.X25519Private, pm domain.PreKeyMessage) ([]byte, error) {
	dh1, err := crypto.DH(signedPreKeyPriv, pm.InitiatorIdentityKey)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(self.XPriv, pm.EphemeralKey)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(signedPreKeyPriv, pm.EphemeralKey)
	if err != nil {
		return nil, err
	}

	ikm := make([]byte, 0, 32*4)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)

	if pm.OneTimePreKeyID != "" {
		if oneTimePreKeyPriv == nil {
			return nil, ErrUnknownOneTimePreKey
		}
		dh4, err := crypto.DH(*oneTimePreKeyPriv, pm.EphemeralKey)
		if err != nil {
			return nil, err
		}
		ikm = append(ikm, dh4[:]...)
	}

	root := hkdfSHA256(ikm, hkdfInfo, 32)
	memzero.Zero(ikm)
	return root, nil
}

func hkdfSHA256(ikm []byte, info string, outLen int) []byte {
	hk := hkdf.New(sha256.New, ikm, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := hk.Read(out); err != nil {
		panic(err) // hkdf.Read only fails past its output limit, unreachable here
	}
	return out
}
