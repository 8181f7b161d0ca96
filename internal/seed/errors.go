package seed

import "errors"

// ErrDataset is returned when a dataset file cannot be read or decoded.
var ErrDataset = errors.New("invalid dataset")
