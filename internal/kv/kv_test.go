package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/comigor/landing-chat/internal/config"
)

// exerciseStore runs the slot contract every backend must honour.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "chat-history:missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "chat-history:a", []byte(`[1]`)))
	got, err := s.Get(ctx, "chat-history:a")
	require.NoError(t, err)
	require.Equal(t, `[1]`, string(got))

	// Set replaces the snapshot, it never appends
	require.NoError(t, s.Set(ctx, "chat-history:a", []byte(`[2,3]`)))
	got, err = s.Get(ctx, "chat-history:a")
	require.NoError(t, err)
	require.Equal(t, `[2,3]`, string(got))

	require.NoError(t, s.Set(ctx, "chat-history:b", []byte(`[]`)))
	got, err = s.Get(ctx, "chat-history:a")
	require.NoError(t, err)
	require.Equal(t, `[2,3]`, string(got), "slots must be independent")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)

	// values handed out are copies
	ctx := context.Background()
	got, err := m.Get(ctx, "chat-history:a")
	require.NoError(t, err)
	got[0] = 'x'
	again, err := m.Get(ctx, "chat-history:a")
	require.NoError(t, err)
	require.Equal(t, `[2,3]`, string(again))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// data survives reopening the file
	s, err = OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "chat-history:a")
	require.NoError(t, err)
	require.Equal(t, `[2,3]`, string(got))
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer r.Close()
	exerciseStore(t, r)
	require.False(t, mr.Exists("chat-history:missing"))
}

func TestRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr})
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Config{History: config.HistoryConfig{Backend: config.BackendMemory}})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.Config{History: config.HistoryConfig{
		Backend: config.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "h.db"),
	}})
	require.NoError(t, err)
	require.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, config.Config{
		History: config.HistoryConfig{Backend: config.BackendRedis},
		Redis:   config.RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	require.IsType(t, &Redis{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.Config{History: config.HistoryConfig{Backend: "etcd"}})
	require.Error(t, err)
}
