// Package cli implements scoutctl, the operator tool for building affiliate
// datasets, trying filters and templates offline, and smoke testing a
// running scout server.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/scout/pkg/logger"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type rootOptions struct {
	logFile   string
	logFormat string
	logLevel  string
}

// NewRootCommand builds the scoutctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "scoutctl",
		Short:         "Operator tool for the scout affiliate discovery service",
		Long:          `scoutctl generates affiliate datasets, applies filters and segment templates to them offline, exports members and smoke tests a running server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setupLogging(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logFile, "log", "", "Also write logs to this file (size rotated)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	root.AddCommand(
		newVersionCommand(),
		newGenerateCommand(),
		newFilterCommand(),
		newExportCommand(),
		newSmokeCommand(),
	)
	return root
}

// setupLogging sends logs to w, and to the rotated log file when one is set.
func (o *rootOptions) setupLogging(w io.Writer) error {
	if err := logger.Init(
		logger.WithWriter(w),
		logger.WithFormat(o.logFormat),
		logger.WithFile(o.logFile),
	); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.SetLevelString(o.logLevel)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scoutctl %s (built %s)\n", Version, BuildTime)
		},
	}
}
