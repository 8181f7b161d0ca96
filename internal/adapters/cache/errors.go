package cache

import "errors"

// ErrConnect is returned when the Redis server cannot be reached at startup.
var ErrConnect = errors.New("redis connect failed")
