// Package vault provides an HTTP implementation of the domain.VaultClient
// interface: the C8 key-vault, which lets a device recover per-message keys
// it failed to deliver locally (crash, reinstall) by replaying them from the
// server-side vault rather than rolling back the Double Ratchet.
//
// All requests are JSON over HTTP and context-aware; non-2xx statuses
// surface as errors carrying the method, path, and status text.
package vault
