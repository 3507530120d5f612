// Package protoerr classifies the sentinel errors the protocol and storage
// layers return into short, user-facing labels, so the CLI can report a
// stable error kind without string-matching error text.
package protoerr

import (
	"errors"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
)

// Kind is a stable, user-facing error classification.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindAlreadyExists   Kind = "already_exists"
	KindAlreadyConsumed Kind = "already_consumed"
	KindQuarantined     Kind = "quarantined"
	KindCounterTooLow   Kind = "counter_too_low"
	KindReplayOrGap     Kind = "replay_or_gap"
	KindTooManySkipped  Kind = "too_many_skipped"
	KindAuthFailed      Kind = "auth_failed"
	KindUnknown         Kind = "unknown"
)

// Classify maps err onto the Kind its sentinel implies, walking the chain
// with errors.Is/errors.As rather than matching on message text.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotFound):
		return KindNotFound
	case errors.Is(err, domain.ErrIdentityExists):
		return KindAlreadyExists
	case errors.Is(err, domain.ErrAlreadyConsumed):
		return KindAlreadyConsumed
	case errors.Is(err, domain.ErrQuarantined):
		return KindQuarantined
	case errors.Is(err, domain.ErrCounterTooLow):
		return KindCounterTooLow
	case errors.Is(err, ratchet.ErrCounterReplayOrGap):
		return KindReplayOrGap
	case errors.Is(err, ratchet.ErrTooManySkipped):
		return KindTooManySkipped
	case errors.Is(err, ratchet.ErrDecryptAuthFail):
		return KindAuthFailed
	default:
		return KindUnknown
	}
}

// UserMessage returns a short, non-leaky description suitable for CLI
// output; it never echoes err's own text, which may embed key-derived
// identifiers not meant for casual display.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindAlreadyConsumed:
		return "invite already consumed"
	case KindQuarantined:
		return "session quarantined; re-pair to continue"
	case KindCounterTooLow:
		return "stale send counter; retrying"
	case KindReplayOrGap:
		return "message counter gap; catching up"
	case KindTooManySkipped:
		return "too many skipped messages; session may be stale"
	case KindAuthFailed:
		return "decryption failed: message authentication error"
	default:
		return "unexpected error"
	}
}
