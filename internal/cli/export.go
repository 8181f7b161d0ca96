package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scout/internal/export"
	"github.com/okian/scout/pkg/logger"
)

type exportOptions struct {
	selection
	format string
	output string
}

func newExportCommand() *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the members of a filter or template as CSV or XLSX",
		Example: `  scoutctl export --template tiktok-gmv --format xlsx
  scoutctl export --dataset affiliates.json --spec rules.json -o picks.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(export.FormatCSV), "Export format: csv or xlsx")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: a dated file name in the working directory)")
	return cmd
}

func (o *exportOptions) run(cmd *cobra.Command) error {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	matched, _, _, err := o.match(cmd.InOrStdin(), now)
	if err != nil {
		return err
	}

	path := o.output
	if path == "" {
		path = export.Filename(format, now)
	}
	f, err := os.Create(path) //nolint:gosec // operator supplied path
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := export.Write(f, format, matched); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Get().Info(cmd.Context(), "export written",
		logger.String("output", path),
		logger.String("format", string(format)),
		logger.Int("rows", len(matched)))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
