package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
	"ciphera/internal/protoerr"
)

// outboxCmd drains the C7 per-peer outbox FIFO, one send at a time.
func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox <conversation-id> <sender-device-id>",
		Short: "Process one queued outbox job for a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			outcome, err := appCtx.OutboxService.ProcessOne(
				cmd.Context(), passphrase, domain.ConversationID(args[0]), args[1],
			)
			if err != nil {
				return fmt.Errorf("processing outbox (%s): %w", protoerr.UserMessage(err), err)
			}
			switch {
			case outcome.Sent:
				fmt.Printf("Sent message %s (counter %d)\n", outcome.ServerMessageID, outcome.Counter)
			case outcome.Queued:
				fmt.Printf("Job %s requeued for retry\n", outcome.JobID)
			case outcome.Replaced:
				fmt.Printf("Job %s replaced with %s (expected counter %d)\n", outcome.JobID, outcome.NewMessageID, outcome.ExpectedCounter)
			default:
				fmt.Println("Outbox empty")
			}
			return nil
		},
	}
	return cmd
}
