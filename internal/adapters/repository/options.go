package repository

import "time"

// Option applies a configuration option to the MemorySegmentStore.
type Option func(*MemorySegmentStore)

// WithClock overrides the time source used for timestamps and recency filters.
func WithClock(now func() time.Time) Option {
	return func(s *MemorySegmentStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides segment id generation.
func WithIDGenerator(next func() string) Option {
	return func(s *MemorySegmentStore) {
		if next != nil {
			s.newID = next
		}
	}
}
