// Package cache provides the small in-process cache the processor uses to
// keep each session's latest published estimate around for polling clients.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Set(ctx context.Context, key string, value any) error

	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	Get(ctx context.Context, key string) (any, error)

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}

type Stats struct {
	Items int    `json:"items"`
	Info  string `json:"info"`
}
