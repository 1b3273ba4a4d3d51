package ratelimiter

import (
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// GetterSetter stores the integer bucket state of the token bucket limiter:
// milli-tokens and the last refill time in unix milliseconds. Implementations
// report absent or expired keys as ErrCacheMiss.
type GetterSetter interface {
	Get(key string) (int, error)
	Set(key string, value int) error
	SetWithExpiration(key string, value int, expiration time.Duration) error
	Close() error
}
