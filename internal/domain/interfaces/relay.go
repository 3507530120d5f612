package interfaces

import (
	"context"

	domaintypes "ciphera/internal/domain/types"
)

// RelayClient is how we talk to the central relay server, all with
// context.
type RelayClient interface {
	RegisterPreKeyBundle(ctx context.Context, bundle domaintypes.PreKeyBundle) error
	FetchPreKeyBundle(
		ctx context.Context,
		username domaintypes.Username,
	) (domaintypes.PreKeyBundle, error)

	SendMessage(ctx context.Context, envelope domaintypes.Envelope) error
	FetchMessages(
		ctx context.Context,
		username domaintypes.Username,
		limit int,
	) ([]domaintypes.Envelope, error)
	AckMessages(ctx context.Context, username domaintypes.Username, count int) error
	FetchAccountCanary(ctx context.Context, username domaintypes.Username) (string, error)

	// SendState reports the send counter the relay expects next from
	// (from, to, senderDeviceID), for the CounterTooLow repair flow: after
	// SendMessage fails with domain.ErrCounterTooLow, the outbox calls this
	// to learn where its local send chain actually stands relative to what
	// the relay has already accepted.
	SendState(ctx context.Context, from, to domaintypes.Username, senderDeviceID string) (expectedCounter uint64, err error)
}
