package receive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
	"ciphera/internal/session"
	"ciphera/internal/vault"
)

// dedupWindow bounds how many recently delivered message ids are
// remembered per process lifetime before the oldest are evicted.
const dedupWindow = 4096

// catchUpDebounce coalesces repeated gap-triggered catch-up jobs for the
// same peer: a burst of out-of-order arrivals should fetch and reconcile
// against the relay once, not once per envelope.
const catchUpDebounce = 2 * time.Second

// Service implements domain.ReceivePipeline.
type Service struct {
	snapshots  domain.SnapshotStore
	relay      domain.RelayClient
	vault      domain.VaultClient
	selfDevice string

	// locks serializes ratchet state mutation for one peer. seqLocks is
	// independent of it: it serializes the incoming-sequence catch-up job
	// for a peer, since a batch catch-up can be triggered both by an
	// explicit CatchUp call and by a gap detected inside HandleIncoming,
	// and the two must not race each other's relay fetch/ack sequence.
	locks    *peerLocks
	seqLocks *peerLocks

	seen *lru.Cache[string, struct{}]

	mu          sync.Mutex
	lastCatchUp map[string]int64                // peerKey -> unix seconds catch-up last ran
	clearAfter  map[domain.ConversationID]int64 // tombstone cutoff set by a conversation-deleted message
}

// New constructs a receive Service. selfDeviceID filters catch-up fetches
// down to envelopes actually addressed to this device.
func New(snapshots domain.SnapshotStore, relay domain.RelayClient, vaultClient domain.VaultClient, selfDeviceID string) *Service {
	seen, err := lru.New[string, struct{}](dedupWindow)
	if err != nil {
		panic(err) // only errors on a non-positive size, which dedupWindow never is
	}
	return &Service{
		snapshots:   snapshots,
		relay:       relay,
		vault:       vaultClient,
		selfDevice:  selfDeviceID,
		locks:       newPeerLocks(),
		seqLocks:    newPeerLocks(),
		seen:        seen,
		lastCatchUp: make(map[string]int64),
		clearAfter:  make(map[domain.ConversationID]int64),
	}
}

// HandleIncoming decrypts a single envelope against peer's live ratchet
// session. A nil, nil return means env was already delivered (dedup hit)
// or falls before the conversation's clear-after tombstone, not an error.
// passphrase unlocks the master key needed only if a gap forces a
// vault-assisted replay.
func (s *Service) HandleIncoming(
	ctx context.Context,
	passphrase string,
	peer domain.PeerIdentity,
	env domain.Envelope,
) (*domain.DecryptedMessage, error) {
	lock := s.locks.get(peer.Key())
	lock.Lock()
	defer lock.Unlock()

	holder, ok := s.snapshots.Get(peer.Key())
	if !ok {
		return nil, fmt.Errorf("receive: %w: no ratchet session for %s", domain.ErrNotFound, peer.Key())
	}

	if cutoff, tombstoned := s.clearCutoff(holder.ConversationID); tombstoned && env.Timestamp > 0 && env.Timestamp <= cutoff {
		return nil, nil
	}

	msgID := envelopeID(peer, env.Header)
	if _, hit := s.seen.Get(msgID); hit {
		return nil, nil
	}

	plaintext, err := ratchet.Decrypt(holder, env.AssociatedData, env.Header, env.IV, env.Cipher)
	if isGapError(err) {
		// If this envelope's counter is already within what the vault has
		// recorded as delivered, the relay queue almost certainly no longer
		// holds it: skip straight to vault replay instead of a pointless
		// fetch.
		if localMax := s.localMax(ctx, holder, peer); env.Meta.Counter == 0 || env.Meta.Counter > localMax {
			if s.debounceCatchUp(peer.Key()) {
				if _, catchErr := s.catchUp(ctx, passphrase, peer, holder); catchErr != nil {
					return nil, fmt.Errorf("receive: catch-up after gap: %w", catchErr)
				}
			}
			plaintext, err = ratchet.Decrypt(holder, env.AssociatedData, env.Header, env.IV, env.Cipher)
		}
	}
	if isGapError(err) {
		if replayed, replayErr := s.vaultReplay(ctx, passphrase, peer, holder.ConversationID, env); replayErr == nil {
			plaintext, err = replayed, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("receive: decrypt from %s: %w", peer.Key(), err)
	}

	s.seen.Add(msgID, struct{}{})
	if err := s.persist(peer, *holder); err != nil {
		return nil, err
	}

	msgType := env.Meta.MessageType
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if msgType == domain.MessageTypeConversationDeleted {
		s.setClearCutoff(holder.ConversationID, env.Timestamp)
	}

	return &domain.DecryptedMessage{
		From:        env.From,
		To:          env.To,
		MessageType: msgType,
		Plaintext:   plaintext,
		Timestamp:   env.Timestamp,
		MessageID:   msgID,
	}, nil
}

// CatchUp re-fetches everything still queued for peer on the relay and
// decrypts it in ratchet order, skipping anything this device has already
// seen or that doesn't target it. fromCounter is informational only: the
// ratchet's own skip window (backstopped by vault replay) is what actually
// bridges a gap.
func (s *Service) CatchUp(
	ctx context.Context,
	passphrase string,
	peer domain.PeerIdentity,
	fromCounter uint64,
) ([]domain.DecryptedMessage, error) {
	_ = fromCounter

	lock := s.locks.get(peer.Key())
	lock.Lock()
	defer lock.Unlock()

	holder, ok := s.snapshots.Get(peer.Key())
	if !ok {
		return nil, fmt.Errorf("receive: %w: no ratchet session for %s", domain.ErrNotFound, peer.Key())
	}
	return s.catchUp(ctx, passphrase, peer, holder)
}

// catchUp assumes the caller already holds peer's state lock. It further
// serializes against any other in-flight catch-up for the same peer via
// the incoming-sequence lock, independent of the state lock above.
func (s *Service) catchUp(
	ctx context.Context,
	passphrase string,
	peer domain.PeerIdentity,
	holder *domain.RatchetHolder,
) ([]domain.DecryptedMessage, error) {
	seqLock := s.seqLocks.get(peer.Key())
	seqLock.Lock()
	defer seqLock.Unlock()

	envs, err := s.relay.FetchMessages(ctx, domain.Username(peer.AccountDigest), 0)
	if err != nil {
		return nil, fmt.Errorf("receive: fetching queued messages: %w", err)
	}
	sort.SliceStable(envs, func(i, j int) bool { return envs[i].Timestamp < envs[j].Timestamp })

	out := make([]domain.DecryptedMessage, 0, len(envs))
	for _, env := range envs {
		if env.Meta.SenderDeviceID != peer.DeviceID {
			continue
		}
		if s.selfDevice != "" && env.Meta.TargetDeviceID != "" && env.Meta.TargetDeviceID != s.selfDevice {
			continue
		}
		if cutoff, tombstoned := s.clearCutoff(holder.ConversationID); tombstoned && env.Timestamp > 0 && env.Timestamp <= cutoff {
			continue
		}

		msgID := envelopeID(peer, env.Header)
		if _, hit := s.seen.Get(msgID); hit {
			continue
		}

		plaintext, decErr := ratchet.Decrypt(holder, env.AssociatedData, env.Header, env.IV, env.Cipher)
		if decErr != nil {
			if replayed, replayErr := s.vaultReplay(ctx, passphrase, peer, holder.ConversationID, env); replayErr == nil {
				plaintext, decErr = replayed, nil
			}
		}
		if decErr != nil {
			// A gap beyond the skip window that vault replay couldn't
			// recover either, or a genuinely corrupt message: stop here and
			// leave the remainder queued for the next attempt.
			break
		}
		s.seen.Add(msgID, struct{}{})

		msgType := env.Meta.MessageType
		if msgType == "" {
			msgType = domain.MessageTypeText
		}
		if msgType == domain.MessageTypeConversationDeleted {
			s.setClearCutoff(holder.ConversationID, env.Timestamp)
		}
		out = append(out, domain.DecryptedMessage{
			From:        env.From,
			To:          env.To,
			MessageType: msgType,
			Plaintext:   plaintext,
			Timestamp:   env.Timestamp,
			MessageID:   msgID,
		})
	}

	if err := s.persist(peer, *holder); err != nil {
		return out, err
	}
	if len(out) > 0 {
		if err := s.relay.AckMessages(ctx, domain.Username(peer.AccountDigest), len(out)); err != nil {
			return out, fmt.Errorf("receive: acking messages: %w", err)
		}
	}
	return out, nil
}

// localMax returns the higher of the key vault's recorded highest-incoming
// counter and what this device's own ratchet has already advanced to. A
// gap detected at a counter at or below localMax means the relay's queue
// has almost certainly already dropped that message (it was delivered and
// acked once, by this device or another); only vault replay, not a relay
// catch-up, stands a chance of recovering it.
func (s *Service) localMax(ctx context.Context, holder *domain.RatchetHolder, peer domain.PeerIdentity) uint64 {
	state, err := s.vault.LatestState(ctx, holder.ConversationID, peer.DeviceID)
	if err != nil {
		return holder.ReceiveCounterTotal
	}
	if state.HighestIncoming > holder.ReceiveCounterTotal {
		return state.HighestIncoming
	}
	return holder.ReceiveCounterTotal
}

// vaultReplay recovers an out-of-reach message by fetching its wrapped key
// from the key vault and decrypting directly under it, bypassing chain
// derivation entirely. It is the path of last resort once both the
// ratchet's own skip window and a relay catch-up have failed to produce
// the key.
func (s *Service) vaultReplay(
	ctx context.Context,
	passphrase string,
	peer domain.PeerIdentity,
	conversationID domain.ConversationID,
	env domain.Envelope,
) ([]byte, error) {
	if env.Meta.MessageID == "" {
		return nil, fmt.Errorf("receive: vault replay: envelope carries no message id")
	}
	entry, found, err := s.vault.Get(ctx, conversationID, peer.DeviceID, env.Meta.MessageID)
	if err != nil {
		return nil, fmt.Errorf("receive: vault replay: fetching entry: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("receive: vault replay: %w: no entry for %s", domain.ErrNotFound, env.Meta.MessageID)
	}

	masterKey := crypto.DeriveMasterKey(passphrase)
	defer crypto.Wipe(masterKey)

	mk, err := vault.UnwrapMessageKey(masterKey, entry)
	if err != nil {
		return nil, fmt.Errorf("receive: vault replay: unwrapping message key: %w", err)
	}
	defer crypto.Wipe(mk)

	plaintext, err := ratchet.DecryptWithMessageKey(mk, env.AssociatedData, env.Header, env.IV, env.Cipher)
	if err != nil {
		return nil, fmt.Errorf("receive: vault replay: %w", err)
	}
	return plaintext, nil
}

// debounceCatchUp reports whether a gap-triggered catch-up for peerKey
// should actually run now, coalescing a burst of gaps arriving within
// catchUpDebounce of each other into a single relay round trip.
func (s *Service) debounceCatchUp(peerKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Unix()
	if now-s.lastCatchUp[peerKey] < int64(catchUpDebounce.Seconds()) {
		return false
	}
	s.lastCatchUp[peerKey] = now
	return true
}

func (s *Service) clearCutoff(conversationID domain.ConversationID) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff, ok := s.clearAfter[conversationID]
	return cutoff, ok
}

func (s *Service) setClearCutoff(conversationID domain.ConversationID, at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at > s.clearAfter[conversationID] {
		s.clearAfter[conversationID] = at
	}
}

func isGapError(err error) bool {
	return errors.Is(err, ratchet.ErrCounterReplayOrGap) || errors.Is(err, ratchet.ErrTooManySkipped)
}

func (s *Service) persist(peer domain.PeerIdentity, holder domain.RatchetHolder) error {
	if _, _, err := s.snapshots.Persist(peer.Key(), session.EncodeSnapshot(holder), s.selfDevice); err != nil {
		return fmt.Errorf("receive: persisting session: %w", err)
	}
	return nil
}

func envelopeID(peer domain.PeerIdentity, header domain.RatchetHeader) string {
	return fmt.Sprintf("%s:%s:%d:%d", peer.Key(), hex.EncodeToString(header.DiffieHellmanPublicKey), header.PreviousChainLength, header.MessageIndex)
}

var _ domain.ReceivePipeline = (*Service)(nil)
