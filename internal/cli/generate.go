package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/seed"
	"github.com/okian/scout/pkg/logger"
)

type generateOptions struct {
	count       int
	seed        int64
	mock        bool
	output      string
	emailChance float64
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic affiliate dataset as JSON",
		Long: `Generate writes a reproducible synthetic affiliate dataset. The file can be
loaded by the server with dataset_path, uploaded with PUT /affiliates, or
passed to the filter and export commands with --dataset.`,
		Example: `  scoutctl generate --count 5000 --seed 7 --output affiliates.json
  scoutctl generate --mock > demo.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.count, "count", 1000, "Number of affiliates to generate")
	flags.Int64Var(&opts.seed, "seed", 1, "Random seed; the same seed yields the same dataset")
	flags.BoolVar(&opts.mock, "mock", false, "Write the fixed demo directory instead of generating")
	flags.StringVarP(&opts.output, "output", "o", "-", "Output file, or - for stdout")
	flags.Float64Var(&opts.emailChance, "email-chance", seed.DefaultGeneratorConfig().EmailChance, "Probability that an affiliate has an email")
	return cmd
}

func (o *generateOptions) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	now := time.Now().UTC()
	if !o.mock && o.count < 1 {
		return fmt.Errorf("%w: --count must be positive", ErrUsage)
	}
	if o.emailChance < 0 || o.emailChance > 1 {
		return fmt.Errorf("%w: --email-chance must be within [0,1]", ErrUsage)
	}

	var records []affiliate.Record
	if o.mock {
		records = seed.Mock(now)
	} else {
		cfg := seed.DefaultGeneratorConfig()
		cfg.Seed = o.seed
		cfg.EmailChance = o.emailChance
		cfg.Now = now
		records = seed.NewGenerator(cfg).Generate(o.count)
	}

	if o.output == "-" {
		return seed.Encode(cmd.OutOrStdout(), records)
	}
	if err := seed.SaveFile(o.output, records); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	logger.Get().Info(ctx, "dataset written",
		logger.String("output", o.output),
		logger.Int("count", len(records)),
		logger.Int64("seed", o.seed))
	return nil
}
