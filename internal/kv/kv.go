// Package kv provides named byte slots used to persist client-side state.
// Every Set replaces the whole value held by a slot.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/landing-chat/internal/config"
	"github.com/comigor/landing-chat/internal/logger"
)

// ErrNotFound is returned by Get when a slot has never been written.
var ErrNotFound = errors.New("kv: slot not found")

// Store is a key-value store of snapshot slots.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open builds the backend named by cfg.History.Backend. When the sqlite file
// cannot be opened the history falls back to memory so the widget keeps working.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.History.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendRedis:
		return NewRedis(ctx, cfg.Redis)
	case config.BackendSQLite, "":
		s, err := OpenSQLite(ctx, cfg.History.Path)
		if err != nil {
			logger.L.Warn("sqlite open failed; using in-memory history", "path", cfg.History.Path, "error", err)
			return NewMemory(), nil
		}
		return s, nil
	default:
		return nil, fmt.Errorf("kv: unknown history backend %q", cfg.History.Backend)
	}
}
