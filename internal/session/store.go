package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/novacare/nova/internal/flow"
)

var ErrNotFound = errors.New("session not found")

// Store holds per-call sessions keyed by call id. Reads return copies;
// mutation happens through Mutate, which serializes read-modify-write
// sequences per call while leaving other calls fully parallel.
type Store struct {
	mu                sync.RWMutex
	calls             map[string]*entry
	inactivityTimeout time.Duration
	onExpire          func(CallSession)
}

type entry struct {
	// mu serializes whole turns for one call. Concurrent turns for the same
	// call id are rare in practice but must not corrupt state.
	mu   sync.Mutex
	sess *CallSession
}

func NewStore(inactivityTimeout time.Duration) *Store {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Store{
		calls:             make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
	}
}

func (st *Store) SetExpireHook(hook func(CallSession)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onExpire = hook
}

// Create registers a session for the call id. It is idempotent: a second
// create for a live id returns the existing session unchanged.
func (st *Store) Create(callID string) CallSession {
	e, _ := st.ensure(callID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.sess)
}

// Get is the strict lookup: absence is an error.
func (st *Store) Get(callID string) (CallSession, error) {
	st.mu.RLock()
	e, ok := st.calls[callID]
	st.mu.RUnlock()
	if !ok {
		return CallSession{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.sess), nil
}

// GetOrCreate is the lenient lookup used on the turn path: an unknown id is
// created on demand rather than failing the turn.
func (st *Store) GetOrCreate(callID string) CallSession {
	return st.Create(callID)
}

// Mutate applies fn to the session under the per-call lock, creating the
// session on demand. fn sees the live session; every mutation refreshes
// LastUpdatedAt. The lock is held for the whole of fn, so a caller may run a
// full read-modify-write turn inside it.
func (st *Store) Mutate(callID string, fn func(*CallSession) error) error {
	e, _ := st.ensure(callID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.sess); err != nil {
		return err
	}
	e.sess.LastUpdatedAt = time.Now().UTC()
	return nil
}

// Remove destroys the session, returning its final state.
func (st *Store) Remove(callID string) (CallSession, error) {
	st.mu.Lock()
	e, ok := st.calls[callID]
	if ok {
		delete(st.calls, callID)
	}
	st.mu.Unlock()
	if !ok {
		return CallSession{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.sess), nil
}

func (st *Store) ActiveCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.calls)
}

// StartJanitor expires sessions with no activity within the inactivity
// timeout. Abandoned webhook calls must not leak sessions.
func (st *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.expireInactive()
			}
		}
	}()
}

func (st *Store) expireInactive() {
	now := time.Now().UTC()

	st.mu.RLock()
	candidates := make(map[string]*entry, len(st.calls))
	for id, e := range st.calls {
		candidates[id] = e
	}
	hook := st.onExpire
	st.mu.RUnlock()

	var expired []CallSession
	for id, e := range candidates {
		// A call mid-turn holds its entry lock; it is not idle, skip it
		// rather than blocking the janitor behind backend latency.
		if !e.mu.TryLock() {
			continue
		}
		idle := now.Sub(e.sess.LastUpdatedAt) >= st.inactivityTimeout
		var snap CallSession
		if idle {
			snap = cloneSession(e.sess)
		}
		e.mu.Unlock()
		if !idle {
			continue
		}

		st.mu.Lock()
		if cur, ok := st.calls[id]; ok && cur == e {
			delete(st.calls, id)
			expired = append(expired, snap)
		}
		st.mu.Unlock()
	}

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func (st *Store) ensure(callID string) (*entry, bool) {
	st.mu.RLock()
	e, ok := st.calls[callID]
	st.mu.RUnlock()
	if ok {
		return e, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.calls[callID]; ok {
		return e, false
	}
	now := time.Now().UTC()
	e = &entry{sess: &CallSession{
		CallID:        callID,
		Phase:         flow.InitialPhase,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}}
	st.calls[callID] = e
	return e, true
}

func cloneSession(s *CallSession) CallSession {
	c := *s
	c.History = append([]Turn(nil), s.History...)
	return c
}
