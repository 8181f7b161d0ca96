package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/internal/seed"
)

// selection holds the flags shared by commands that pick affiliates.
type selection struct {
	dataset  string
	specFile string
	template string
}

func (s *selection) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&s.dataset, "dataset", "", "Dataset JSON file (default: built-in demo directory)")
	flags.StringVar(&s.specFile, "spec", "", "Filter specification JSON file, or - for stdin")
	flags.StringVar(&s.template, "template", "", "Built-in segment template id")
}

// records loads the dataset, falling back to the demo directory.
func (s *selection) records(now time.Time) ([]affiliate.Record, error) {
	if s.dataset == "" {
		return seed.Mock(now), nil
	}
	return seed.LoadFile(s.dataset)
}

// spec resolves the filter to apply. With neither --spec nor --template the
// default filter is used.
func (s *selection) spec(stdin io.Reader) (filter.Spec, error) {
	switch {
	case s.specFile != "" && s.template != "":
		return filter.Spec{}, fmt.Errorf("%w: --spec and --template are mutually exclusive", ErrUsage)
	case s.template != "":
		t, ok := segment.FindTemplate(s.template)
		if !ok {
			return filter.Spec{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, s.template)
		}
		return t.FilterRules, nil
	case s.specFile != "":
		return readSpec(s.specFile, stdin)
	default:
		return filter.Default(), nil
	}
}

// match applies the selection and returns matches in the spec's sort order.
func (s *selection) match(stdin io.Reader, now time.Time) ([]affiliate.Record, filter.Spec, int, error) {
	spec, err := s.spec(stdin)
	if err != nil {
		return nil, filter.Spec{}, 0, err
	}
	records, err := s.records(now)
	if err != nil {
		return nil, filter.Spec{}, 0, err
	}
	matched := filter.Select(records, &spec, now)
	filter.SortRecords(matched, spec.Sort)
	return matched, spec, len(records), nil
}

func readSpec(path string, stdin io.Reader) (filter.Spec, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // operator supplied path
		if err != nil {
			return filter.Spec{}, err
		}
		defer f.Close()
		r = f
	}
	var spec filter.Spec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return filter.Spec{}, fmt.Errorf("%w: %w", filter.ErrInvalidFilter, err)
	}
	if err := filter.Validate(&spec); err != nil {
		return filter.Spec{}, err
	}
	return spec, nil
}
