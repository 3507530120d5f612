// Package receive implements the C9 receive pipeline: the scheduler that
// turns an incoming domain.Envelope into a domain.DecryptedMessage against
// the peer's live ratchet session.
//
// HandleIncoming decrypts one envelope and is what the relay's push/poll
// loop calls per message. CatchUp re-fetches everything still queued for a
// peer and decrypts it in order, used after a gap is detected (an envelope
// arrives whose header counter is ahead of what the ratchet's skip window
// can bridge) or on process start.
//
// A per-peer lock serializes decrypts for one peer device (ratchet state
// is single-owner and must never be mutated concurrently) while leaving
// unrelated peers free to decrypt in parallel. A second, independent lock
// serializes the incoming-sequence catch-up job for a peer so a gap
// detected mid-decrypt and an explicit CatchUp call never race each
// other's relay fetch/ack sequence, with a short debounce coalescing a
// burst of gaps into one round trip. A bounded LRU of recently delivered
// message ids makes HandleIncoming idempotent against relay redelivery.
//
// When neither the ratchet's own skip window nor a relay catch-up can
// reach a message, vault replay recovers its key directly from the key
// vault as a last resort. A received conversation-deleted message sets a
// per-conversation tombstone cutoff; anything timestamped at or before it
// is dropped rather than decrypted.
package receive
