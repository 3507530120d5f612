package outbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ciphera/internal/domain"
)

const maxVaultPutAttempts = 5

// vaultPutBackoff returns the base-60s exponential schedule used to retry a
// key-vault put that failed outright, capped at maxVaultPutAttempts.
func vaultPutBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 60 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Minute
	b.MaxElapsedTime = 0 // bounded by maxVaultPutAttempts instead of wall-clock
	return backoff.WithMaxRetries(b, maxVaultPutAttempts-1)
}

// VaultRetrier drains the pending-vault-put queue, retrying each entry with
// exponential backoff until it succeeds or exhausts maxVaultPutAttempts, at
// which point it is dropped and the caller must fall back to a fresh vault
// put on the next message in that conversation.
type VaultRetrier struct {
	store domain.OutboxStore
	vault domain.VaultClient
}

// NewVaultRetrier constructs a VaultRetrier over store and vault.
func NewVaultRetrier(store domain.OutboxStore, vault domain.VaultClient) *VaultRetrier {
	return &VaultRetrier{store: store, vault: vault}
}

// RunOnce retries every pending vault put whose NextAttempt has arrived,
// returning how many were retired (succeeded or exhausted their attempts).
func (r *VaultRetrier) RunOnce(ctx context.Context, now int64) (int, error) {
	due, err := r.store.DuePendingVaultPuts(now)
	if err != nil {
		return 0, err
	}

	retired := 0
	for _, p := range due {
		err := r.vault.Put(ctx, p.Entry)
		if err == nil {
			if rmErr := r.store.RemovePendingVaultPut(
				p.Entry.ConversationID, p.Entry.MessageID, p.Entry.SenderDeviceID,
			); rmErr != nil {
				return retired, rmErr
			}
			retired++
			continue
		}

		p.Attempts++
		if p.Attempts >= maxVaultPutAttempts {
			if rmErr := r.store.RemovePendingVaultPut(
				p.Entry.ConversationID, p.Entry.MessageID, p.Entry.SenderDeviceID,
			); rmErr != nil {
				return retired, rmErr
			}
			retired++
			continue
		}

		p.NextAttempt = now + int64(nextDelay(p.Attempts).Seconds())
		if err := r.store.EnqueuePendingVaultPut(p); err != nil {
			return retired, err
		}
	}
	return retired, nil
}

// nextDelay walks the exponential schedule attempts steps in to compute the
// wait before the next retry.
func nextDelay(attempts int) time.Duration {
	b := vaultPutBackoff()
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
		if d == backoff.Stop {
			return 30 * time.Minute
		}
	}
	return d
}
