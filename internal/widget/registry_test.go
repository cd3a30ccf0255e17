package widget

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/comigor/landing-chat/internal/config"
	"github.com/comigor/landing-chat/internal/history"
	"github.com/comigor/landing-chat/internal/kv"
	"github.com/comigor/landing-chat/internal/models"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, turns []models.Turn) (string, error) {
	return "echo: " + turns[len(turns)-1].Content, nil
}

var historyCfg = config.HistoryConfig{KeyPrefix: "chat-history", MaxEntries: 20, TitleLength: 30}

func TestGet_SameClientSameWidget(t *testing.T) {
	r := NewRegistry(kv.NewMemory(), echoCompleter{}, historyCfg)
	id := uuid.NewString()

	a, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	b, err := r.Get(context.Background(), strings.ToUpper(id))
	require.NoError(t, err)
	require.Same(t, a, b)

	c, err := r.Get(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.NotSame(t, a, c)
}

func TestGet_InvalidClient(t *testing.T) {
	r := NewRegistry(kv.NewMemory(), echoCompleter{}, historyCfg)
	_, err := r.Get(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidClient)
}

func TestGet_LoadsPersistedHistory(t *testing.T) {
	backend := kv.NewMemory()
	id := uuid.NewString()

	seed := history.NewStore(backend, SlotKey("chat-history", id))
	_, err := seed.Archive(context.Background(), []models.Message{models.NewMessage(models.RoleUser, "from before")})
	require.NoError(t, err)

	r := NewRegistry(backend, echoCompleter{}, historyCfg)
	w, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	list := w.History.List()
	require.Len(t, list, 1)
	require.Equal(t, "from before", list[0].Title)
}

func TestWidget_ClosePersistsToClientSlot(t *testing.T) {
	backend := kv.NewMemory()
	r := NewRegistry(backend, echoCompleter{}, historyCfg)
	id := uuid.NewString()
	w, err := r.Get(context.Background(), id)
	require.NoError(t, err)

	require.True(t, w.Session.Submit(context.Background(), "Hello"))
	_, archived, err := w.Session.Close(context.Background())
	require.NoError(t, err)
	require.True(t, archived)

	_, err = backend.Get(context.Background(), SlotKey("chat-history", id))
	require.NoError(t, err)
}

func TestGet_EvictsLeastRecentlyUsed(t *testing.T) {
	backend := kv.NewMemory()
	cfg := historyCfg
	cfg.MaxWidgets = 2
	r := NewRegistry(backend, echoCompleter{}, cfg)
	ctx := context.Background()
	a, b, c := uuid.NewString(), uuid.NewString(), uuid.NewString()

	wa, err := r.Get(ctx, a)
	require.NoError(t, err)
	require.True(t, wa.Session.Submit(ctx, "unsaved question"))
	_, err = r.Get(ctx, b)
	require.NoError(t, err)
	_, err = r.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	// the evicted widget was closed, so its open conversation is archived
	require.Empty(t, wa.Session.Messages())
	again, err := r.Get(ctx, a)
	require.NoError(t, err)
	require.NotSame(t, wa, again)
	require.Empty(t, again.Session.Messages())
	list := again.History.List()
	require.Len(t, list, 1)
	require.Equal(t, "unsaved question", list[0].Title)
}

func TestGet_BoundedUnderManyClients(t *testing.T) {
	cfg := historyCfg
	cfg.MaxWidgets = 16
	r := NewRegistry(kv.NewMemory(), echoCompleter{}, cfg)
	for i := 0; i < 500; i++ {
		_, err := r.Get(context.Background(), uuid.NewString())
		require.NoError(t, err)
	}
	require.Equal(t, 16, r.Len())
}

func TestGet_DefaultMaxWidgets(t *testing.T) {
	r := NewRegistry(kv.NewMemory(), echoCompleter{}, historyCfg)
	for i := 0; i < DefaultMaxWidgets+10; i++ {
		_, err := r.Get(context.Background(), uuid.NewString())
		require.NoError(t, err)
	}
	require.Equal(t, DefaultMaxWidgets, r.Len())
}

// gatedKV blocks reads of one slot until released.
type gatedKV struct {
	*kv.Memory
	slot    string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKV) Get(ctx context.Context, key string) ([]byte, error) {
	if key == g.slot {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Get(ctx, key)
}

func TestGet_SlowLoadDoesNotBlockOtherClients(t *testing.T) {
	slow := uuid.NewString()
	backend := &gatedKV{
		Memory:  kv.NewMemory(),
		slot:    SlotKey("chat-history", slow),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewRegistry(backend, echoCompleter{}, historyCfg)

	slowDone := make(chan error)
	go func() {
		_, err := r.Get(context.Background(), slow)
		slowDone <- err
	}()
	<-backend.entered

	fast := make(chan error)
	go func() {
		_, err := r.Get(context.Background(), uuid.NewString())
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(backend.release)
		t.Fatal("lookup of another client waited on a slow history load")
	}

	close(backend.release)
	require.NoError(t, <-slowDone)
	w1, err := r.Get(context.Background(), slow)
	require.NoError(t, err)
	w2, err := r.Get(context.Background(), slow)
	require.NoError(t, err)
	require.Same(t, w1, w2)
	require.Equal(t, 2, r.Len())
}
