// Package history keeps the bounded, newest-first list of archived chat
// sessions for one widget client.
// The whole list is persisted as a single JSON snapshot in a kv slot, and
// every change rewrites that snapshot.
// A missing or unreadable snapshot is treated as an empty history.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/landing-chat/internal/kv"
	"github.com/comigor/landing-chat/internal/logger"
	"github.com/comigor/landing-chat/internal/models"
)

const (
	DefaultMaxEntries  = 20
	DefaultTitleLength = 30
)

// ErrEmptySession is returned when archiving a session without messages.
var ErrEmptySession = errors.New("history: cannot archive an empty session")

// Store is the archived session list bound to one kv slot.
type Store struct {
	mu          sync.Mutex
	kv          kv.Store
	key         string
	maxEntries  int
	titleLength int
	now         func() time.Time
	entries     []Entry
}

// Option customises a Store.
type Option func(*Store)

// WithMaxEntries caps the number of kept entries. Non-positive values are ignored.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithTitleLength sets how many characters of the first message form the title.
func WithTitleLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.titleLength = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store persisting to slot key of backend.
// Call Load to pick up a previously saved snapshot.
func NewStore(backend kv.Store, key string, opts ...Option) *Store {
	s := &Store{
		kv:          backend,
		key:         key,
		maxEntries:  DefaultMaxEntries,
		titleLength: DefaultTitleLength,
		now:         time.Now,
		entries:     []Entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted snapshot.
// An absent or corrupt snapshot yields an empty list and no error. A backend
// failure also leaves the list empty but is reported to the caller.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load history %s: %w", s.key, err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.L.Warn("history snapshot unreadable; starting empty", "key", s.key, "error", err)
		return nil
	}
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}
	if entries != nil {
		s.entries = entries
	}
	logger.L.Debug("history loaded", "key", s.key, "entries", len(s.entries))
	return nil
}

// Archive stores msgs as a new newest entry, evicting the oldest entries past
// the cap, and persists the full list. The entry stays in memory even when
// persisting fails.
func (s *Store) Archive(ctx context.Context, msgs []models.Message) (Entry, error) {
	if len(msgs) == 0 {
		return Entry{}, ErrEmptySession
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Title:     Title(msgs[0].Content, s.titleLength),
		Messages:  models.CloneMessages(msgs),
		Timestamp: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]Entry, 0, len(s.entries)+1)
	updated = append(updated, entry)
	updated = append(updated, s.entries...)
	if len(updated) > s.maxEntries {
		for _, evicted := range updated[s.maxEntries:] {
			logger.L.Debug("history entry evicted", "key", s.key, "id", evicted.ID)
		}
		updated = updated[:s.maxEntries]
	}
	s.entries = updated

	return entry.clone(), s.save(ctx)
}

// List returns the entries newest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// Delete removes the entry with the given id, if any, and persists the list.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		s.entries = slices.Delete(slices.Clone(s.entries), i, i+1)
	}
	return s.save(ctx)
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.ID == id })
}

// save must be called with mu held.
func (s *Store) save(ctx context.Context) error {
	raw, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		logger.L.Error("failed to persist history", "key", s.key, "error", err)
		return fmt.Errorf("save history %s: %w", s.key, err)
	}
	return nil
}
