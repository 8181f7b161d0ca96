package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrSameSegment    = errors.New("source and destination segment are the same")
	ErrNotDynamic     = errors.New("segment has no filter rules")
	ErrInvalidSegment = errors.New("invalid segment")
	ErrDuplicateID    = errors.New("duplicate affiliate id")
)
