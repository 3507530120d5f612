package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// backupCmd groups the C10 contact-secrets backup operations.
func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload or recover your contact secrets",
	}
	cmd.AddCommand(backupUploadCmd(), backupHydrateCmd())
	return cmd
}

func backupUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Seal and upload your current contact secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.BackupService.Upload(cmd.Context(), passphrase); err != nil {
				return fmt.Errorf("uploading backup: %w", err)
			}
			fmt.Println("Backup uploaded")
			return nil
		},
	}
}

func backupHydrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hydrate",
		Short: "Download and merge the server-side contact-secrets backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := appCtx.BackupService.Hydrate(cmd.Context(), passphrase)
			if err != nil {
				return fmt.Errorf("hydrating backup: %w", err)
			}
			fmt.Printf("Applied %d contact record(s) from backup\n", n)
			return nil
		},
	}
}
