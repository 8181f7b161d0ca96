package source

import "errors"

var (
	// ErrFetch wraps every failure of a remote backend.
	ErrFetch = errors.New("fetch failed")
	// ErrInvalidPage is returned for negative page indexes.
	ErrInvalidPage = errors.New("invalid page index")
)
