package x3dh_test

import (
	"bytes"
	"testing"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/x3dh"
)

func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

func bundleFor(t *testing.T, bob domain.Identity, withOPK bool) (domain.PreKeyBundle, domain.X25519Private, *domain.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	sig := crypto.SignEd25519(bob.EdPriv, spkPub.Slice())

	bundle := domain.PreKeyBundle{
		Username:              "bob",
		IdentityKey:           bob.XPub,
		SigningKey:            bob.EdPub,
		SignedPreKeyID:        "spk-test",
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
	}

	var opkPriv *domain.X25519Private
	if withOPK {
		p, P, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519: %v", err)
		}
		opkPriv = &p
		bundle.OneTimePreKeys = []domain.OneTimePreKeyPublic{{ID: "opk-1", Pub: P}}
	}
	return bundle, spkPriv, opkPriv
}

func TestInitiatorAndResponderRoot_NoOPK(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := bundleFor(t, bob, false)

	rkA, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	if spkID != "spk-test" {
		t.Fatalf("want spkID=spk-test, got %q", spkID)
	}
	if opkID != "" {
		t.Fatalf("want empty opkID, got %q", opkID)
	}

	pm := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       spkID,
		OneTimePreKeyID:      opkID,
	}

	rkB, err := x3dh.ResponderRoot(bob, spkPriv, nil, pm)
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}
	if !bytes.Equal(rkA, rkB) {
		t.Fatal("root keys differ (no OPK)")
	}
}

func TestInitiatorAndResponderRoot_WithOPK(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, opkPriv := bundleFor(t, bob, true)

	rkA, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}
	if spkID != "spk-test" || opkID != "opk-1" {
		t.Fatalf("unexpected IDs spk=%q opk=%q", spkID, opkID)
	}

	pm := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       spkID,
		OneTimePreKeyID:      opkID,
	}

	rkB, err := x3dh.ResponderRoot(bob, spkPriv, opkPriv, pm)
	if err != nil {
		t.Fatalf("ResponderRoot: %v", err)
	}
	if !bytes.Equal(rkA, rkB) {
		t.Fatal("root keys differ (with OPK)")
	}
}

func TestInitiatorRoot_BadSignatureRejected(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := bundleFor(t, bob, false)
	bundle.SignedPreKeySignature[0] ^= 0xFF

	if _, _, _, _, err := x3dh.InitiatorRoot(alice, bundle); err != x3dh.ErrBadSignature {
		t.Fatalf("got %v, want ErrBadSignature", err)
	}
}

func TestResponderRoot_MissingOneTimePreKeyRejected(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := bundleFor(t, bob, false)

	_, spkID, _, ephPub, err := x3dh.InitiatorRoot(alice, bundle)
	if err != nil {
		t.Fatalf("InitiatorRoot: %v", err)
	}

	pm := domain.PreKeyMessage{
		InitiatorIdentityKey: alice.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       spkID,
		OneTimePreKeyID:      "opk-claimed-but-missing",
	}
	if _, err := x3dh.ResponderRoot(bob, spkPriv, nil, pm); err != x3dh.ErrUnknownOneTimePreKey {
		t.Fatalf("got %v, want ErrUnknownOneTimePreKey", err)
	}
}
