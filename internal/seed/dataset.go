package seed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

// Decode reads a JSON array of affiliates and rejects records with a missing
// id, negative counts or an unknown platform or GMV tier.
func Decode(r io.Reader) ([]affiliate.Record, error) {
	var records []affiliate.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataset, err)
	}
	v := filter.Validator()
	for i := range records {
		if err := v.Struct(&records[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %s", ErrDataset, i, filter.Describe(err))
		}
	}
	return records, nil
}

// Encode writes records as an indented JSON array.
func Encode(w io.Writer, records []affiliate.Record) error {
	if records == nil {
		records = []affiliate.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// LoadFile reads a dataset file written by SaveFile.
func LoadFile(path string) ([]affiliate.Record, error) {
	f, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataset, err)
	}
	defer f.Close()
	return Decode(f)
}

// SaveFile writes records to path, replacing any existing file.
func SaveFile(path string, records []affiliate.Record) error {
	f, err := os.Create(path) //nolint:gosec // operator supplied path
	if err != nil {
		return err
	}
	if err := Encode(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
