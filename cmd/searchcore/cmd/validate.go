package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check raw/normalized text consistency",
		Long: `Scan every chunk and report those whose stored normalized text does
not match a fresh recomputation from the raw text. Read-only: nothing
is corrected (use "reindex" for that). Exits non-zero when drift is
found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.synchronizer.ValidateSync(cmd.Context())
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %d chunks: %d out of sync\n",
					report.Checked, report.Unsynced)
				for _, id := range report.UnsyncedIDs {
					fmt.Fprintf(cmd.OutOrStdout(), "  unsynced %s\n", id)
				}
				for _, f := range report.Failures {
					fmt.Fprintf(cmd.OutOrStdout(), "  failed %s: %s\n", f.ChunkID, f.Reason)
				}
			}

			if !report.InSync() {
				return fmt.Errorf("index out of sync: %d chunks drifted, %d failed",
					report.Unsynced, len(report.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
