package protoerr

import (
	"errors"
	"fmt"
	"testing"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
)

func TestClassifyKnownSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not found", domain.ErrNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", domain.ErrNotFound), KindNotFound},
		{"identity exists", domain.ErrIdentityExists, KindAlreadyExists},
		{"already consumed", domain.ErrAlreadyConsumed, KindAlreadyConsumed},
		{"quarantined", domain.ErrQuarantined, KindQuarantined},
		{"counter too low", domain.ErrCounterTooLow, KindCounterTooLow},
		{"replay or gap", ratchet.ErrCounterReplayOrGap, KindReplayOrGap},
		{"too many skipped", ratchet.ErrTooManySkipped, KindTooManySkipped},
		{"auth fail", ratchet.ErrDecryptAuthFail, KindAuthFailed},
		{"unknown", errors.New("boom"), KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Fatalf("Classify(%v) = %q, want %q", c.err, got, c.want)
			}
		})
	}
}

func TestUserMessageNeverEchoesRawError(t *testing.T) {
	raw := errors.New("secret-key-abc123")
	msg := UserMessage(fmt.Errorf("wrap: %w", raw))
	if msg == "" {
		t.Fatal("expected a non-empty message")
	}
	if msg == raw.Error() {
		t.Fatalf("UserMessage leaked the raw error text: %q", msg)
	}
}

func TestUserMessageKnownKinds(t *testing.T) {
	if got := UserMessage(domain.ErrQuarantined); got == "unexpected error" {
		t.Fatalf("expected a specific message for quarantined, got %q", got)
	}
}
