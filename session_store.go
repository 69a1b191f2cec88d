package gate

import (
	"sync"
)

// Snapshot is a point-in-time read of the store. Primed is false until the
// provider's first auth event lands; route decisions taken before that are
// provisional and re-decided once it does.
type Snapshot struct {
	User    *User
	Session *Session
	Primed  bool
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Watcher observes store updates. Called synchronously after each write,
// in registration order, outside the store lock.
type Watcher func(Snapshot)

// SessionStore is the process-wide reactive holder of the current
// user/session pair. It has a single-writer contract: only the Coordinator
// (plus the idempotent direct write right after a sign-in success) mutates
// it. Both fields are replaced together; readers never observe them updated
// at different times.
type SessionStore struct {
	mu       sync.RWMutex
	user     *User
	session  *Session
	primed   bool
	watchers []storeWatcher
	nextID   int
	logger   Logger
}

type storeWatcher struct {
	id int
	fn Watcher
}

// SessionStoreOption customizes store construction.
type SessionStoreOption func(*SessionStore)

// WithStoreLogger overrides the logger used for watcher bookkeeping.
func WithStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionStore returns a store initialized to {nil, nil}.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{logger: defLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns the signed-in user, nil when unauthenticated.
func (s *SessionStore) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// CurrentSession returns the provider session, nil when unauthenticated.
func (s *SessionStore) CurrentSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Snapshot returns a consistent read of both fields.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{User: s.user, Session: s.session, Primed: s.primed}
}

// Primed reports whether the first auth event has been applied.
func (s *SessionStore) Primed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primed
}

// SetAuth replaces both fields atomically from the reader's point of view.
// The pairing invariant (session == nil ⇔ user == nil) is normalized at the
// write site so it is never observable broken: a nil session clears the
// user, a session without an explicit user contributes its own.
func (s *SessionStore) SetAuth(user *User, session *Session) {
	if session == nil {
		user = nil
	} else if user == nil {
		user = session.User
		if user == nil {
			session = nil
		}
	}

	s.mu.Lock()
	s.user = user
	s.session = session
	s.primed = true
	snap := Snapshot{User: s.user, Session: s.session, Primed: true}
	watchers := make([]storeWatcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		w.fn(snap)
	}
}

// Watch registers fn for update notifications and returns an idempotent
// cancel function. Watchers run synchronously on the writer's goroutine, so
// the store write for event N completes before event N+1 is processed.
func (s *SessionStore) Watch(fn Watcher) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers = append(s.watchers, storeWatcher{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, w := range s.watchers {
				if w.id == id {
					s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
					break
				}
			}
		})
	}
}
