package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/storage"
)

// Storage keys. The backup always holds the last state that passed validation.
const (
	stateKey       = "user_state"
	stateBackupKey = "user_state_backup"
)

// StateStore defines the storage operations the Manager needs.
// Implemented by storage.Store. GetProfileKey returns storage.ErrNotFound for
// missing keys.
type StateStore interface {
	SetProfileKey(key, value string) error
	GetProfileKey(key string) (string, error)
	DeleteProfileKeys(keys ...string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SessionInput is what a caller reports when a session ends.
type SessionInput struct {
	ExerciseID      string    `json:"exerciseId" validate:"required"`
	DurationMinutes float64   `json:"durationMinutes" validate:"gte=0"`
	CompletedCycles int       `json:"completedCycles" validate:"gte=0"`
	Feedback        *Feedback `json:"feedback" validate:"omitempty,oneof=calmer same moreActivated"`
	WasEarlyExit    bool      `json:"wasEarlyExit"`
}

// Validate checks the input fields. It does not look up the exercise.
func (in SessionInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}

// Manager owns the single UserState, persisting every change to the store and
// notifying subscribers after each successful update.
type Manager struct {
	store     StateStore
	clock     Clock
	exercises *catalog.Catalog

	mu     sync.RWMutex
	cached *UserState

	subMu  sync.Mutex
	subs   map[int]func(UserState)
	nextID int
}

// NewManager creates a Manager backed by store.
func NewManager(store StateStore, exercises *catalog.Catalog) *Manager {
	return NewManagerWithClock(store, exercises, realClock{})
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store StateStore, exercises *catalog.Catalog, clock Clock) *Manager {
	return &Manager{
		store:     store,
		clock:     clock,
		exercises: exercises,
		subs:      make(map[int]func(UserState)),
	}
}

// State returns a copy of the current state, loading it on first use.
func (m *Manager) State() (UserState, error) {
	m.mu.RLock()
	if m.cached != nil {
		s := m.cached.Clone()
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.loadLocked()
	if err != nil {
		return UserState{}, err
	}
	return s.Clone(), nil
}

// loadLocked returns the cached state, reading it from the store if needed.
// Falls back to the backup when the primary copy is missing or corrupt, and
// to a fresh default when both are unusable. Caller must hold m.mu.
func (m *Manager) loadLocked() (UserState, error) {
	if m.cached != nil {
		return *m.cached, nil
	}

	s, err := m.read(stateKey)
	switch {
	case err == nil:
		if err := m.writeKey(stateBackupKey, s); err != nil {
			slog.Warn("refreshing state backup failed", "error", err)
		}
	case errors.Is(err, storage.ErrNotFound):
		// Restore the primary from the backup, or on first launch persist
		// the fresh default so its id stays stable.
		s, err = m.read(stateBackupKey)
		if err != nil {
			s = Default(uuid.New().String())
			if err := m.writeKey(stateBackupKey, s); err != nil {
				slog.Warn("writing state backup failed", "error", err)
			}
		}
		if err := m.writeKey(stateKey, s); err != nil {
			slog.Warn("persisting loaded state failed", "error", err)
		}
	default:
		if !errors.Is(err, ErrInvalidState) && !isDecodeError(err) {
			return UserState{}, fmt.Errorf("loading user state: %w", err)
		}
		slog.Warn("stored user state unusable, trying backup", "error", err)
		backup, berr := m.read(stateBackupKey)
		if berr != nil {
			slog.Warn("state backup unusable, starting fresh", "error", berr)
			backup = Default(uuid.New().String())
		} else {
			slog.Info("user state restored from backup")
		}
		s = backup
		if err := m.writeKey(stateKey, s); err != nil {
			slog.Warn("rewriting restored state failed", "error", err)
		}
	}

	m.cached = &s
	return s, nil
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decoding user state: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

func (m *Manager) read(key string) (UserState, error) {
	raw, err := m.store.GetProfileKey(key)
	if err != nil {
		return UserState{}, err
	}
	var s UserState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return UserState{}, &decodeError{err: err}
	}
	if err := Validate(s); err != nil {
		return UserState{}, err
	}
	if s.SessionHistory == nil {
		s.SessionHistory = []SessionRecord{}
	}
	return s, nil
}

func (m *Manager) writeKey(key string, s UserState) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshalling user state: %w", err)
	}
	if err := m.store.SetProfileKey(key, string(b)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// commitLocked validates and persists s, then replaces the cache.
// Caller must hold m.mu.
func (m *Manager) commitLocked(s UserState) error {
	if err := Validate(s); err != nil {
		return err
	}
	if err := m.writeKey(stateKey, s); err != nil {
		return err
	}
	if err := m.writeKey(stateBackupKey, s); err != nil {
		slog.Warn("writing state backup failed", "error", err)
	}
	cp := s.Clone()
	m.cached = &cp
	return nil
}

// update runs fn against the current state under the write lock and commits
// the result. Subscribers are notified after the lock is released.
func (m *Manager) update(fn func(UserState) (UserState, error)) (UserState, error) {
	m.mu.Lock()
	cur, err := m.loadLocked()
	if err != nil {
		m.mu.Unlock()
		return UserState{}, err
	}
	next, err := fn(cur.Clone())
	if err != nil {
		m.mu.Unlock()
		return UserState{}, err
	}
	if err := m.commitLocked(next); err != nil {
		m.mu.Unlock()
		return UserState{}, err
	}
	m.mu.Unlock()

	m.notify(next)
	return next.Clone(), nil
}

// Set replaces the whole state after validating it.
func (m *Manager) Set(s UserState) error {
	_, err := m.update(func(UserState) (UserState, error) {
		return s.Clone(), nil
	})
	return err
}

// CompleteOnboarding applies the answers and marks onboarding complete.
func (m *Manager) CompleteOnboarding(answers map[string]string) (UserState, error) {
	return m.update(func(cur UserState) (UserState, error) {
		next, err := ApplyOnboarding(cur, answers)
		if err != nil {
			return UserState{}, err
		}
		next.OnboardingCompleted = true
		return next, nil
	})
}

// RecordSession appends a session to the history and adapts the state to its
// outcome. The read-modify-write happens under one lock, so concurrent calls
// never lose a session.
func (m *Manager) RecordSession(in SessionInput) (UserState, SessionRecord, error) {
	if err := in.Validate(); err != nil {
		return UserState{}, SessionRecord{}, err
	}
	ex, err := m.exercises.ByID(in.ExerciseID)
	if err != nil {
		return UserState{}, SessionRecord{}, fmt.Errorf("recording session: %w", err)
	}

	rec := NewSessionRecord(ex.ID, in.DurationMinutes, in.CompletedCycles, in.Feedback, in.WasEarlyExit, m.clock.Now())
	next, err := m.update(func(cur UserState) (UserState, error) {
		return ApplySession(cur, ex, rec), nil
	})
	if err != nil {
		return UserState{}, SessionRecord{}, err
	}
	slog.Debug("session recorded",
		"exercise", ex.ID,
		"early_exit", rec.WasEarlyExit,
		"history", len(next.SessionHistory),
	)
	return next, rec, nil
}

// Reset wipes the stored state and starts over with a fresh default.
func (m *Manager) Reset() (UserState, error) {
	m.mu.Lock()
	if err := m.store.DeleteProfileKeys(stateKey, stateBackupKey); err != nil {
		m.mu.Unlock()
		return UserState{}, fmt.Errorf("clearing user state: %w", err)
	}
	m.cached = nil
	fresh := Default(uuid.New().String())
	if err := m.commitLocked(fresh); err != nil {
		m.mu.Unlock()
		return UserState{}, err
	}
	m.mu.Unlock()

	m.notify(fresh)
	return fresh.Clone(), nil
}

// SessionContext derives the session context from the current state.
func (m *Manager) SessionContext() (SessionContext, error) {
	s, err := m.State()
	if err != nil {
		return SessionContext{}, err
	}
	return m.ContextFor(s), nil
}

// ContextFor derives the session context of s as seen now, in the clock's
// location. Use it to pair a context with a state already read.
func (m *Manager) ContextFor(s UserState) SessionContext {
	return BuildSessionContext(s, m.clock.Now())
}

// Subscribe registers fn to receive a copy of every committed state.
// The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(UserState)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify(s UserState) {
	m.subMu.Lock()
	fns := make([]func(UserState), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s.Clone())
	}
}
