package storage

import (
	"context"
	"time"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// Expirer is implemented by stores whose records can carry an expiry,
// like a cookie with Max-Age. An expired record reads as absent.
type Expirer interface {
	SetExpiring(ctx context.Context, key string, value []byte, expiresAt time.Time) error
}

// Event is one entry of the shared change log.
type Event struct {
	Seq       int64
	Key       string
	Writer    string
	ChangedAt time.Time
}

// ChangeLog exposes the shared change log to watchers.
type ChangeLog interface {
	LastSeq(ctx context.Context) (int64, error)
	Changes(ctx context.Context, after int64) ([]Event, error)
}
