package commands

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
)

var (
	inviteTTL      int64
	inviteNickname string
	inviteAvatar   string
)

// inviteCmd groups the C6 invite-dropbox operations: the owner publishes an
// invite, the guest delivers its contact-init over it, and the owner
// consumes the result to stand up the first Double Ratchet session.
func inviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Bootstrap a new contact via the invite dropbox",
	}
	cmd.AddCommand(inviteCreateCmd(), inviteAcceptCmd(), inviteConsumeCmd())
	return cmd
}

// inviteCreateCmd publishes the caller's prekey bundle under a fresh invite
// and prints the record (base64 JSON) to share out of band, e.g. as a QR
// code or pairing link.
func inviteCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish an invite and print the record to share with a guest",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := appCtx.InviteService.CreateInvite(cmd.Context(), passphrase, inviteTTL)
			if err != nil {
				return fmt.Errorf("creating invite: %w", err)
			}
			blob, err := json.Marshal(record)
			if err != nil {
				return err
			}
			fmt.Printf("Pairing code: %s\n", record.PairingCode)
			fmt.Printf("Invite record (share with guest): %s\n", base64.StdEncoding.EncodeToString(blob))
			return nil
		},
	}
	cmd.Flags().Int64Var(&inviteTTL, "ttl", 0, "invite lifetime in seconds (default 10m)")
	return cmd
}

// inviteAcceptCmd is run by the guest: it decodes the owner's invite
// record, seals this account's contact-init payload against the owner's
// identity key, and delivers it through the dropbox.
func inviteAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <invite-record-b64>",
		Short: "Deliver your contact-init to an invite published by someone else",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decoding invite record: %w", err)
			}
			var record domain.InviteRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return fmt.Errorf("parsing invite record: %w", err)
			}

			guest := domain.PeerIdentity{AccountDigest: username, DeviceID: username}
			profile := domain.GuestProfile{Nickname: inviteNickname, Avatar: inviteAvatar}

			err = appCtx.InviteService.DeliverContactInit(
				cmd.Context(), passphrase, record.InviteID, record.OwnerBundle, guest, profile,
			)
			if err != nil {
				return fmt.Errorf("delivering contact-init: %w", err)
			}
			fmt.Println("Contact-init delivered; waiting for the owner to consume it")
			return nil
		},
	}
	cmd.Flags().StringVar(&inviteNickname, "nickname", "", "nickname to disclose to the owner")
	cmd.Flags().StringVar(&inviteAvatar, "avatar", "", "avatar reference to disclose to the owner")
	cmd.Flags().StringVarP(&username, "username", "u", "", "your registered username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// inviteConsumeCmd is run by the owner: it pulls the guest's sealed
// contact-init, runs X3DH against it, and persists the resulting ratchet
// session.
func inviteConsumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume <invite-id>",
		Short: "Consume a delivered contact-init and establish the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, conversationID, err := appCtx.InviteService.ConsumeInvite(cmd.Context(), passphrase, args[0])
			if err != nil {
				return fmt.Errorf("consuming invite: %w", err)
			}
			fmt.Printf("Contact established: %s (conversation %s)\n", peer.Key(), conversationID)
			return nil
		},
	}
	return cmd
}
