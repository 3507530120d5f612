// Package outbox implements the C7 outbox service: a durable per-peer FIFO
// of pending sends with atomic ratchet-counter reservation, and the
// CounterTooLow repair flow for a job whose reserved header counter has
// since been superseded by a concurrent send from another local device.
//
// It also owns the pending-vault-put retry queue: key-vault writes that
// failed outright are parked here and retried with exponential backoff
// (github.com/cenkalti/backoff/v4) rather than blocking the send path.
package outbox
