package widget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/comigor/landing-chat/internal/chat"
	"github.com/comigor/landing-chat/internal/config"
	"github.com/comigor/landing-chat/internal/history"
	"github.com/comigor/landing-chat/internal/kv"
	"github.com/comigor/landing-chat/internal/logger"
)

// ErrInvalidClient is returned for client ids that are not UUIDs.
var ErrInvalidClient = errors.New("widget: client id must be a UUID")

// Widget is the state behind one browser's chat widget.
type Widget struct {
	Session *chat.Manager
	History *history.Store
}

// DefaultMaxWidgets bounds the open widgets kept in memory when no limit is configured.
const DefaultMaxWidgets = 1024

// Registry lazily creates one Widget per client id and keeps at most
// cfg.MaxWidgets of them. The least recently used widget is closed on
// eviction, which archives its open conversation; its history stays in the
// kv slot and is reloaded if the client comes back.
type Registry struct {
	kv        kv.Store
	completer chat.Completer
	cfg       config.HistoryConfig
	widgets   *lru.Cache[string, *Widget]
}

func NewRegistry(store kv.Store, completer chat.Completer, cfg config.HistoryConfig) *Registry {
	size := cfg.MaxWidgets
	if size <= 0 {
		size = DefaultMaxWidgets
	}
	// only fails for a non-positive size
	widgets, _ := lru.NewWithEvict(size, closeEvicted)
	return &Registry{
		kv:        store,
		completer: completer,
		cfg:       cfg,
		widgets:   widgets,
	}
}

func closeEvicted(client string, w *Widget) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, archived, err := w.Session.Close(ctx); err != nil {
		logger.L.Warn("evicted widget not persisted", "client", client, "error", err)
	} else if archived {
		logger.L.Debug("evicted widget archived", "client", client)
	}
}

// SlotKey names the kv slot holding a client's history snapshot.
func SlotKey(prefix, clientID string) string {
	if prefix == "" {
		prefix = "chat-history"
	}
	return prefix + ":" + clientID
}

// Get returns the widget for clientID, creating it and loading its history
// on first use. History is loaded without blocking lookups of other clients.
func (r *Registry) Get(ctx context.Context, clientID string) (*Widget, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClient, clientID)
	}
	key := id.String()

	if w, ok := r.widgets.Get(key); ok {
		return w, nil
	}

	store := history.NewStore(r.kv, SlotKey(r.cfg.KeyPrefix, key),
		history.WithMaxEntries(r.cfg.MaxEntries),
		history.WithTitleLength(r.cfg.TitleLength),
	)
	if err := store.Load(ctx); err != nil {
		logger.L.Warn("history unavailable; starting empty", "client", key, "error", err)
	}
	w := &Widget{
		Session: chat.New(r.completer, store),
		History: store,
	}

	// a concurrent Get for the same client may have won the race
	if prev, ok, _ := r.widgets.PeekOrAdd(key, w); ok {
		return prev, nil
	}
	logger.L.Debug("widget created", "client", key, "history", len(store.List()))
	return w, nil
}

// Len reports how many widgets are held in memory.
func (r *Registry) Len() int {
	return r.widgets.Len()
}
