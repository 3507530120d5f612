// Package session is the C5 session store: an in-memory map of peerKey to
// the canonical *domain.RatchetHolder plus downgrade-resistant persistence
// of its encoded RatchetSnapshot into the contact-secrets store that
// internal/backup later seals and uploads.
//
// The in-memory map is the source of truth while the process is alive; a
// Get returns the live holder so protocol/ratchet can mutate it in place
// during Encrypt/Decrypt. Persist is the only path that touches disk, and it
// refuses to overwrite a newer or role-mismatched snapshot with an older or
// conflicting one (see Store.Persist).
package session
