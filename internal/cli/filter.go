package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/scoring"
	"github.com/okian/scout/internal/seed"
)

// Output formats of the filter command.
const (
	formatIDs     = "ids"
	formatJSON    = "json"
	formatSummary = "summary"
)

type filterOptions struct {
	selection
	format string
	limit  int
}

func newFilterCommand() *cobra.Command {
	opts := &filterOptions{}
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Apply a filter or template to a dataset",
		Long: `Filter evaluates a filter specification or a built-in segment template
against a dataset and prints the matches in the filter's sort order, or the
segment summary a template would produce.`,
		Example: `  scoutctl filter --template skincare-nano --format summary
  scoutctl filter --dataset affiliates.json --spec rules.json --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatIDs, "Output: ids, json or summary")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Print at most this many matches (0 prints all)")
	return cmd
}

func (o *filterOptions) run(cmd *cobra.Command) error {
	switch o.format {
	case formatIDs, formatJSON, formatSummary:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrUsage, o.format)
	}
	if o.limit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", ErrUsage)
	}

	now := time.Now().UTC()
	matched, _, total, err := o.match(cmd.InOrStdin(), now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.format == formatSummary {
		summary := scoring.NewAggregator(scoring.WithClock(func() time.Time { return now })).Summarize(matched)
		return writeSummary(out, summary, total)
	}

	if o.limit > 0 && len(matched) > o.limit {
		matched = matched[:o.limit]
	}
	if o.format == formatJSON {
		return seed.Encode(out, matched)
	}
	return writeIDs(out, matched)
}

func writeIDs(w io.Writer, records []affiliate.Record) error {
	for i := range records {
		if _, err := fmt.Fprintln(w, records[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(w io.Writer, s scoring.Summary, total int) error {
	_, err := fmt.Fprintf(w, `matched:         %d of %d
health:          %d
platforms:       tiktok %d%%, instagram %d%%, youtube %d%%
avg engagement:  %.2f%%
avg followers:   %d
`, s.Count, total, s.Health, s.Platforms.TikTok, s.Platforms.Instagram, s.Platforms.YouTube,
		s.AverageEngagement, s.AverageFollowers)
	return err
}
