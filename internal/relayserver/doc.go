// Package relayserver is the external HTTP surface backing
// domain.RelayClient, domain.VaultClient, domain.DropboxClient, and
// domain.BackupClient: an in-memory reference server exercising the same
// wire contracts the client packages (internal/relay, internal/vault,
// internal/dropbox, internal/backup) speak.
//
// It generalizes the original single-purpose relay (prekey bundles plus a
// per-user message queue) into the full server side of the system: the
// key vault for post-hoc message-key recovery, the invite dropbox for
// contact bootstrap, and the contact-secrets backup endpoint, all behind
// one *http.ServeMux so a single process can stand in for the whole
// server side during development and tests.
package relayserver
