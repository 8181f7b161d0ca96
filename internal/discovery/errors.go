package discovery

import "errors"

// Sentinel kinds for discovery errors.
var (
	ErrBusy            = errors.New("a page fetch is already in flight")
	ErrNoMorePages     = errors.New("no more pages")
	ErrBackpressure    = errors.New("fetch queue is full")
	ErrSessionNotFound = errors.New("discovery session not found")
	ErrSessionClosed   = errors.New("discovery session closed")
	ErrTooManySessions = errors.New("too many discovery sessions")
)
