package cli

import "errors"

var (
	// ErrUsage is returned for invalid flag combinations.
	ErrUsage = errors.New("invalid usage")
	// ErrUnknownTemplate is returned when --template names no built-in template.
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrSmoke is returned when a smoke check observes unexpected behavior.
	ErrSmoke = errors.New("smoke check failed")
)
