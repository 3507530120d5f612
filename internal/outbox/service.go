package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
	"ciphera/internal/vault"
)

// Service drives the per-peer outbox FIFO: Enqueue durably records a job,
// ProcessOne pops the front job for one peer, reserves the next ratchet
// counter, encrypts, wraps the per-message key into the key vault, and
// posts to the relay.
//
// A job's HeaderReserved counter can go stale if another local device on the
// same account advanced the ratchet first. ProcessOne detects this locally
// and also carries a server-driven repair: if the relay itself rejects a
// send with domain.ErrCounterTooLow, ProcessOne fetches /send-state, learns
// the counter the relay actually expects, and resubmits under a freshly
// minted message id rather than failing the whole FIFO.
type Service struct {
	store     domain.OutboxStore
	snapshots domain.SnapshotStore
	relay     domain.RelayClient
	vault     domain.VaultClient
}

// New constructs an outbox Service.
func New(store domain.OutboxStore, snapshots domain.SnapshotStore, relay domain.RelayClient, vaultClient domain.VaultClient) *Service {
	return &Service{store: store, snapshots: snapshots, relay: relay, vault: vaultClient}
}

// Enqueue durably records job for later delivery.
func (s *Service) Enqueue(job domain.OutboxJob) error {
	if job.EnqueuedAt == 0 {
		job.EnqueuedAt = time.Now().Unix()
	}
	return s.store.Enqueue(job)
}

// ProcessOne sends the front job for (conversationID, senderDeviceID), if
// any. A nil error with a zero-value SendOutcome means the FIFO was empty.
// passphrase unlocks the master key used to wrap the per-message key
// submitted to the key vault alongside the send (spec §4.7.3).
func (s *Service) ProcessOne(
	ctx context.Context,
	passphrase string,
	conversationID domain.ConversationID,
	senderDeviceID string,
) (domain.SendOutcome, error) {
	job, found, err := s.store.Dequeue(conversationID, senderDeviceID)
	if err != nil {
		return domain.SendOutcome{}, err
	}
	if !found {
		return domain.SendOutcome{}, nil
	}

	peerKey := job.Receiver.Key()
	holder, ok := s.snapshots.Get(peerKey)
	if !ok {
		return domain.SendOutcome{}, fmt.Errorf("outbox: %w: no ratchet session for %s", domain.ErrNotFound, peerKey)
	}

	outcome := domain.SendOutcome{JobID: job.MessageID}
	messageID := job.MessageID

	if job.HeaderReserved != nil && *job.HeaderReserved < holder.SendCounterTotal {
		// Another local device already advanced the send chain past our
		// reservation: the slot we held is gone. Repair by minting a fresh
		// message id and re-reserving against the current chain state.
		outcome.Replaced = true
		outcome.ExpectedCounter = holder.SendCounterTotal
		messageID = uuid.NewString()
		outcome.NewMessageID = messageID
	}

	header, ciphertext, iv, mk, err := ratchet.Encrypt(holder, nil, job.Plaintext)
	if err != nil {
		if reqErr := s.requeue(job, holder.SendCounterTotal); reqErr != nil {
			return domain.SendOutcome{}, fmt.Errorf("encrypt failed (%v) and requeue failed: %w", err, reqErr)
		}
		return domain.SendOutcome{JobID: job.MessageID, Queued: true}, fmt.Errorf("outbox encrypt: %w", err)
	}
	defer crypto.Wipe(mk)

	masterKey := crypto.DeriveMasterKey(passphrase)
	defer crypto.Wipe(masterKey)

	wrapped, wrapContext, wrapErr := vault.WrapMessageKey(masterKey, job.ConversationID, messageID, domain.DirectionOutgoing, mk)
	if wrapErr != nil {
		// Nothing has reached the network yet: undo the counter advance so
		// the next attempt re-reserves the same slot instead of burning it.
		rollbackSendCounter(holder)
		if reqErr := s.requeue(job, holder.SendCounterTotal); reqErr != nil {
			return domain.SendOutcome{}, fmt.Errorf("wrapping message key failed (%v) and requeue failed: %w", wrapErr, reqErr)
		}
		return domain.SendOutcome{JobID: job.MessageID, Queued: true}, fmt.Errorf("outbox wrap message key: %w", wrapErr)
	}

	entry := domain.VaultEntry{
		ConversationID:    job.ConversationID,
		MessageID:         messageID,
		SenderDeviceID:    job.SenderDeviceID,
		TargetDeviceID:    job.Receiver.DeviceID,
		Direction:         domain.DirectionOutgoing,
		HeaderCounter:     holder.SendCounterTotal,
		WrappedMessageKey: wrapped,
		WrapContext:       wrapContext,
	}

	envelope := domain.Envelope{
		From:   domain.Username(job.SenderDeviceID),
		To:     domain.Username(job.Receiver.AccountDigest),
		Header: header,
		Meta: domain.EnvelopeMeta{
			Timestamp:      time.Now().Unix(),
			SenderDeviceID: job.SenderDeviceID,
			TargetDigest:   job.Receiver.AccountDigest,
			TargetDeviceID: job.Receiver.DeviceID,
			MessageType:    job.MessageType,
			Counter:        holder.SendCounterTotal,
			MessageID:      messageID,
		},
		Cipher:    ciphertext,
		IV:        iv,
		Timestamp: time.Now().Unix(),
	}

	// Past this point the send has either reached the network or been
	// rejected by the relay itself: the counter is burned either way, never
	// rolled back.
	if sendErr := s.relay.SendMessage(ctx, envelope); sendErr != nil {
		if !errors.Is(sendErr, domain.ErrCounterTooLow) {
			if reqErr := s.requeue(job, holder.SendCounterTotal); reqErr != nil {
				return domain.SendOutcome{}, fmt.Errorf("send failed (%v) and requeue failed: %w", sendErr, reqErr)
			}
			return domain.SendOutcome{JobID: job.MessageID, Queued: true}, fmt.Errorf("outbox send: %w", sendErr)
		}

		expected, repairErr := s.repairCounterTooLow(ctx, &envelope, holder, job.SenderDeviceID, &messageID)
		if repairErr != nil {
			if reqErr := s.requeue(job, holder.SendCounterTotal); reqErr != nil {
				return domain.SendOutcome{}, fmt.Errorf("repair failed (%v) and requeue failed: %w", repairErr, reqErr)
			}
			return domain.SendOutcome{JobID: job.MessageID, Queued: true}, fmt.Errorf("outbox counter-too-low repair: %w", repairErr)
		}
		outcome.Replaced = true
		outcome.ExpectedCounter = expected
		outcome.NewMessageID = messageID
		entry.MessageID = messageID
		entry.HeaderCounter = holder.SendCounterTotal
	}

	outcome.Sent = true
	outcome.Counter = holder.SendCounterTotal
	outcome.ServerMessageID = messageID

	if putErr := s.vault.Put(ctx, entry); putErr != nil {
		pending := domain.PendingVaultPut{Entry: entry, NextAttempt: time.Now().Unix()}
		if enqErr := s.store.EnqueuePendingVaultPut(pending); enqErr != nil {
			return outcome, fmt.Errorf("outbox vault put failed (%v) and retry enqueue failed: %w", putErr, enqErr)
		}
	}

	if err := s.store.Remove(job.MessageID); err != nil {
		return outcome, fmt.Errorf("outbox remove after send: %w", err)
	}
	return outcome, nil
}

// repairCounterTooLow asks the relay what counter it actually expects next
// for (envelope.From, envelope.To, senderDeviceID), re-stamps envelope with
// that counter and a freshly minted message id, and resubmits. The
// ciphertext is untouched: the transport counter is bookkeeping independent
// of the ratchet chain index that produced it, so no re-encryption is
// needed to repair it.
func (s *Service) repairCounterTooLow(
	ctx context.Context,
	envelope *domain.Envelope,
	holder *domain.RatchetHolder,
	senderDeviceID string,
	messageID *string,
) (uint64, error) {
	expected, err := s.relay.SendState(ctx, envelope.From, envelope.To, senderDeviceID)
	if err != nil {
		return 0, fmt.Errorf("fetching send-state: %w", err)
	}

	holder.SendCounterTotal = expected
	*messageID = uuid.NewString()
	envelope.Meta.Counter = expected
	envelope.Meta.MessageID = *messageID

	if err := s.relay.SendMessage(ctx, *envelope); err != nil {
		return 0, fmt.Errorf("resend after repair: %w", err)
	}
	return expected, nil
}

// rollbackSendCounter undoes the single Ns/NsTotal advance ratchet.Encrypt
// made. Used only when a failure happens before anything reaches the
// network (the key-vault wrap step); once SendMessage has been attempted,
// the counter is burned regardless of outcome.
func rollbackSendCounter(holder *domain.RatchetHolder) {
	if holder.SendMessageIndex > 0 {
		holder.SendMessageIndex--
	}
	if holder.SendCounterTotal > 0 {
		holder.SendCounterTotal--
	}
}

// requeue re-enqueues job with HeaderReserved set to the counter that was
// in flight when the attempt failed, so the next ProcessOne can detect
// whether that reservation has since gone stale.
func (s *Service) requeue(job domain.OutboxJob, reserved uint64) error {
	job.HeaderReserved = &reserved
	return s.store.Enqueue(job)
}

var _ domain.OutboxService = (*Service)(nil)
