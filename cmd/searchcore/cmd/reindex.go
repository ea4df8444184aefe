package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Recompute normalized text for every chunk",
		Long: `Recompute the normalized projection of every stored chunk from its
current raw text. Safe to re-run at any time; individual chunk failures
are reported without aborting the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.synchronizer.ReindexAll(cmd.Context())
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d/%d chunks in %s\n",
				report.Reindexed, report.Total, report.Duration.Round(time.Millisecond))
			for _, f := range report.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  failed %s: %s\n", f.ChunkID, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
