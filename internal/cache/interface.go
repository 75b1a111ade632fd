package cache

import "time"

// Cache stores encoded response bodies keyed by string.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	SetWithTTL(key string, value []byte, ttl time.Duration)
	Delete(keys ...string)
	Clear()
	Close() error
}
