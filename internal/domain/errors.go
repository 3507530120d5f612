package domain

import "errors"

// Sentinel errors shared across services and stores. Callers match on these
// with errors.Is rather than string comparison.
var (
	// ErrIdentityExists is returned by IdentityStore.SaveIdentity when a
	// local identity is already present.
	ErrIdentityExists = errors.New("domain: identity already exists")
	// ErrNotFound is returned by stores when the requested record is absent.
	ErrNotFound = errors.New("domain: not found")
	// ErrCounterTooLow is returned by the outbox when the relay reports a
	// transport counter lower than expected, signalling a lost-state repair
	// is needed before the job can be retried.
	ErrCounterTooLow = errors.New("domain: counter too low")
	// ErrAlreadyConsumed is returned by the invite dropbox when an invite
	// has already been consumed by its owner.
	ErrAlreadyConsumed = errors.New("domain: invite already consumed")
	// ErrQuarantined is returned by the session store when a peer's ratchet
	// state has been quarantined after a corrupt or downgrading snapshot.
	ErrQuarantined = errors.New("domain: ratchet state quarantined")
)
