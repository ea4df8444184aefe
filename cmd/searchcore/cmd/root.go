// Package cmd provides the CLI commands for searchcore.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fama-labs/searchcore/pkg/version"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the searchcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchcore",
		Short: "Hybrid lexical-semantic retrieval core",
		Long: `searchcore serves hybrid retrieval over ingested text chunks:
a literal inverted-index engine and a semantic collaborator, fused
with Reciprocal Rank Fusion or weighted score fusion.

Query intent (price, location, specification, conceptual) steers the
fusion weights automatically for Brazilian real-estate queries.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("searchcore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
