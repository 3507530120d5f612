// Package backup implements the C10 contact-secrets backup: periodic
// upload of every peer's ContactSecret bundle (role, conversation handle,
// ratchet snapshot, profile fields) sealed under a passphrase-derived key,
// and hydration of a fresh device from the latest uploaded copy.
//
// The local ContactStore is the durable source of truth for what gets
// backed up; Upload serializes it to canonical JSON and seals it with
// XChaCha20-Poly1305 under a fresh per-upload Argon2id salt. Hydrate merges
// the downloaded copy back in by UpdatedAt, so a stale backup can never
// roll back a contact that has since advanced locally.
package backup
