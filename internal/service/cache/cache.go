package cache

import "time"

// BytesCache stores serialized payloads under string keys with a TTL.
// Both backends treat a miss and an expired entry the same way.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
