// Package domain defines the core data model shared across the messaging
// core: key types, prekey bundles, ratchet state, conversation handles, and
// the store/service contracts that the protocol, session, outbox, vault,
// receive and backup packages depend on.
//
// It contains plain types (wire/state) and contracts (interfaces) only — no
// cryptographic logic and no I/O.
package domain
