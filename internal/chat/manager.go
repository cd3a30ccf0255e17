// Package chat owns the conversation currently open in a chat widget: it
// forwards each user turn to the completion backend, records the reply, and
// hands finished conversations to the history store.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/landing-chat/internal/history"
	"github.com/comigor/landing-chat/internal/logger"
	"github.com/comigor/landing-chat/internal/models"
)

const (
	// FallbackContent replaces the reply of a turn whose completion failed.
	FallbackContent = "Something went wrong. Please try again."
	// EmptyReplyContent replaces a successful but blank reply.
	EmptyReplyContent = "Sorry, I couldn't respond."
)

// FSM states
const (
	stateIdle    = "Idle"
	statePending = "AwaitingReply"
)

// FSM triggers
const (
	triggerSubmit  = "Submit"
	triggerSettle  = "Settle"
	triggerAbandon = "Abandon" // session closed or replaced while a reply was pending
)

// Completer maps an ordered conversation to one reply.
type Completer interface {
	Complete(ctx context.Context, turns []models.Turn) (string, error)
}

// History is the part of history.Store the manager needs.
type History interface {
	Archive(ctx context.Context, msgs []models.Message) (history.Entry, error)
	Get(id string) (history.Entry, bool)
}

// Manager holds the active session of one widget.
type Manager struct {
	mu         sync.Mutex
	completer  Completer
	history    History
	fsm        *stateless.StateMachine
	messages   []models.Message
	generation uint64
	cancel     context.CancelFunc
}

// New returns a manager with an empty session.
func New(completer Completer, h History) *Manager {
	m := &Manager{
		completer: completer,
		history:   h,
		messages:  []models.Message{},
	}

	m.fsm = stateless.NewStateMachine(stateIdle)

	// Idle: a submit starts a completion; stray settle/abandon are ignored.
	m.fsm.Configure(stateIdle).
		Permit(triggerSubmit, statePending).
		Ignore(triggerSettle).
		Ignore(triggerAbandon).
		OnEntryFrom(triggerAbandon, func(_ context.Context, _ ...any) error {
			// any reply still in flight belongs to a session that no longer exists
			m.generation++
			return nil
		})

	// AwaitingReply: exactly one completion is outstanding.
	m.fsm.Configure(statePending).
		Permit(triggerSettle, stateIdle).
		Permit(triggerAbandon, stateIdle).
		OnExit(func(_ context.Context, _ ...any) error {
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			return nil
		})

	return m
}

// Submit sends text as the next user turn and blocks until the reply (or the
// fallback) has been appended. It reports false, changing nothing, when text
// is blank or another turn is still pending.
func (m *Manager) Submit(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	m.mu.Lock()
	if ok, _ := m.fsm.CanFire(triggerSubmit); !ok {
		m.mu.Unlock()
		logger.L.Debug("submit ignored; reply pending")
		return false
	}
	m.messages = append(m.messages, models.NewMessage(models.RoleUser, text))
	turns := models.Turns(m.messages)
	callCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	gen := m.generation
	if err := m.fsm.Fire(triggerSubmit); err != nil {
		logger.L.Warn("FSM fire error", "trigger", triggerSubmit, "error", err)
	}
	m.mu.Unlock()
	defer cancel()

	content, err := m.completer.Complete(callCtx, turns)
	switch {
	case err != nil:
		logger.L.Error("LLM call failed", "error", err)
		content = FallbackContent
	case strings.TrimSpace(content) == "":
		content = EmptyReplyContent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		logger.L.Info("discarding reply for abandoned session", "generation", gen, "current_generation", m.generation)
		return true
	}
	m.messages = append(m.messages, models.NewMessage(models.RoleAssistant, content))
	if err := m.fsm.Fire(triggerSettle); err != nil {
		logger.L.Warn("FSM fire error", "trigger", triggerSettle, "error", err)
	}
	return true
}

// Close archives a non-empty session and clears it. A pending reply is
// cancelled and will not be appended anywhere. The returned flag reports
// whether an entry was created; err reports a persistence failure, in which
// case the entry still exists in memory.
func (m *Manager) Close(ctx context.Context) (history.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.abandonLocked()
	if len(m.messages) == 0 {
		return history.Entry{}, false, nil
	}

	msgs := m.messages
	m.messages = []models.Message{}
	entry, err := m.history.Archive(ctx, msgs)
	if err != nil {
		logger.L.Error("failed to archive session", "messages", len(msgs), "error", err)
	}
	return entry, entry.ID != "", err
}

// LoadFromHistory replaces the session with a copy of the archived entry id.
// Unknown ids leave the session untouched and report false.
func (m *Manager) LoadFromHistory(id string) bool {
	entry, ok := m.history.Get(id)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonLocked()
	m.messages = models.CloneMessages(entry.Messages)
	return true
}

// Messages returns a copy of the session in conversation order.
func (m *Manager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.CloneMessages(m.messages)
}

// Pending reports whether a reply is outstanding.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.MustState() == statePending
}

func (m *Manager) abandonLocked() {
	if err := m.fsm.Fire(triggerAbandon); err != nil {
		logger.L.Warn("FSM fire error", "trigger", triggerAbandon, "error", err)
	}
}
