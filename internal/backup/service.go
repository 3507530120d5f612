package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

const backupVersion = 1

// blobAD is the fixed associated data binding a sealed blob to the backup
// format version, so a future incompatible version can never be opened as
// if it were this one.
var blobAD = []byte("ciphera-contact-secrets-backup-v1")

// Service implements domain.BackupService over a ContactStore and a
// domain.BackupClient.
type Service struct {
	contacts *ContactStore
	client   domain.BackupClient
}

// New constructs a backup Service.
func New(contacts *ContactStore, client domain.BackupClient) *Service {
	return &Service{contacts: contacts, client: client}
}

// Upload seals the current contact-secrets map under a fresh Argon2id salt
// and uploads it, overwriting whatever was previously stored server-side.
func (s *Service) Upload(ctx context.Context, passphrase string) error {
	secrets, err := s.contacts.All()
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return err
	}

	salt, err := crypto.RandomBytes(crypto.SaltBytes)
	if err != nil {
		return err
	}
	key := crypto.DeriveKEK(passphrase, salt)
	defer crypto.Wipe(key)

	nonce, ciphertext, err := crypto.SealBlobWithKey(key, blobAD, plaintext)
	if err != nil {
		return err
	}

	blob := domain.BackupBlob{
		Version:   backupVersion,
		SaltB64:   base64.StdEncoding.EncodeToString(salt),
		NonceB64:  base64.StdEncoding.EncodeToString(nonce),
		CipherB64: base64.StdEncoding.EncodeToString(ciphertext),
		UpdatedAt: time.Now().Unix(),
	}
	return s.client.Upload(ctx, blob)
}

// Hydrate downloads the latest backup, opens it under passphrase, and
// merges it into the local contact-secrets store. The returned count is
// how many records the merge actually applied (a fresh local store applies
// all of them; a device that has been running applies only the ones the
// backup has newer data for). Hydrate is a no-op, returning 0, if no
// backup has ever been uploaded.
func (s *Service) Hydrate(ctx context.Context, passphrase string) (int, error) {
	blob, found, err := s.client.Download(ctx)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if blob.Version != backupVersion {
		return 0, nil
	}

	salt, err := base64.StdEncoding.DecodeString(blob.SaltB64)
	if err != nil {
		return 0, err
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.NonceB64)
	if err != nil {
		return 0, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob.CipherB64)
	if err != nil {
		return 0, err
	}

	key := crypto.DeriveKEK(passphrase, salt)
	defer crypto.Wipe(key)

	plaintext, err := crypto.OpenBlobWithKey(key, blobAD, nonce, ciphertext)
	if err != nil {
		return 0, err
	}

	var secrets map[string]domain.ContactSecret
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return 0, err
	}
	return s.contacts.Merge(secrets)
}

var _ domain.BackupService = (*Service)(nil)
