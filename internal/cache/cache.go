package cache

import (
	"context"
	"time"
)

// Cache is the advisory fast tier in front of the durable store. Every
// implementation must tolerate losing its contents at any time; callers
// rebuild from the database on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: key not found" }
