package dropbox

import (
	"testing"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

func TestSealOpenAnonymousRoundTrip(t *testing.T) {
	recipientPriv, recipientPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	payload := domain.ContactInitPayload{
		Version:            1,
		Type:               "contact-init",
		GuestAccountDigest: "deadbeef",
		GuestDeviceID:      "device-1",
	}

	envelope, err := sealAnonymous("invite-1", recipientPub, payload)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if envelope.InviteID != "invite-1" {
		t.Fatalf("invite id not preserved: %q", envelope.InviteID)
	}

	var got domain.ContactInitPayload
	if err := openAnonymous(recipientPriv, envelope, &got); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.GuestAccountDigest != payload.GuestAccountDigest || got.GuestDeviceID != payload.GuestDeviceID {
		t.Fatalf("payload mismatch: got %+v want %+v", got, payload)
	}
}

func TestOpenAnonymousFailsUnderWrongKey(t *testing.T) {
	_, recipientPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	wrongPriv, _, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	envelope, err := sealAnonymous("invite-1", recipientPub, domain.ContactInitPayload{Version: 1})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	var got domain.ContactInitPayload
	if err := openAnonymous(wrongPriv, envelope, &got); err == nil {
		t.Fatal("expected decryption failure under the wrong key")
	}
}
