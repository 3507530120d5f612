// Package dropbox implements the C6 invite dropbox: the owner/guest sealed
// mailbox that bootstraps a new contact without either side needing to be
// online at the same time.
//
// An owner calls CreateInvite to publish a pairing code and their prekey
// bundle; a guest who scans it calls DeliverContactInit to drop a sealed
// ContactInitPayload for the owner to pick up; the owner calls ConsumeInvite
// to retrieve it, run X3DH as the initiator against the guest's bundle, and
// establish the Double Ratchet conversation. The reply (ContactSharePayload)
// travels over that newly-live session rather than through the dropbox.
//
// The transport (HTTP) and the sealing (anonymous ECDH + ChaCha20-Poly1305)
// are kept separate: HTTP implements domain.DropboxClient and moves opaque
// SealedEnvelope values, while Service does the X3DH/ratchet work and the
// seal/open of the envelope contents.
package dropbox
