// Package cmd provides the CLI commands for the dewey binary.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dewey-index/dewey/internal/logging"
	"github.com/dewey-index/dewey/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the dewey CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dewey",
		Short: "An embedding index over a local plaintext corpus",
		Long: `Dewey builds and queries an HNSW-backed nearest-neighbor index over
a local corpus of plaintext files, so a sibling chat client can ask
"what in this corpus is semantically near this text?" without sending
the corpus anywhere.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate("dewey version {{.Version}}\n")

	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to $DEWEY_HOME/logs/")
	root.PersistentPreRunE = startLogging
	root.PersistentPostRunE = stopLogging

	root.AddCommand(newReindexCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newSnapshotCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
