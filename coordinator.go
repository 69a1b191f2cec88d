package gate

import (
	"context"
	"sync"
	"time"
)

// Coordinator bridges the provider's auth-event stream to the SessionStore
// and to navigation. It is the store's single writer.
type Coordinator struct {
	stream   AuthStream
	store    *SessionStore
	nav      Navigator
	routes   Routes
	logger   Logger
	activity ActivitySink

	startOnce sync.Once
	closeOnce sync.Once
	sub       Unsubscriber
}

// CoordinatorOption customizes coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger overrides the default logger.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoordinatorActivitySink configures an ActivitySink for auth events.
func WithCoordinatorActivitySink(sink ActivitySink) CoordinatorOption {
	return func(c *Coordinator) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithCoordinatorRoutes overrides the route table used for the post-sign-in
// navigation check.
func WithCoordinatorRoutes(routes Routes) CoordinatorOption {
	return func(c *Coordinator) {
		c.routes = routes
	}
}

// NewCoordinator wires the stream, store and navigator together. Call Start
// to open the subscription and Close to release it.
func NewCoordinator(stream AuthStream, store *SessionStore, nav Navigator, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		stream:   stream,
		store:    store,
		nav:      nav,
		routes:   DefaultRoutes(),
		logger:   defLogger{},
		activity: noopActivitySink{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start opens the long-lived subscription. Safe to call more than once; the
// subscription is opened exactly once.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		c.sub = c.stream.OnAuthStateChange(c.handle)
	})
}

// Close releases the subscription exactly once. Events already in flight
// still apply their store write; no new events are delivered after Close
// returns (the stream serializes delivery with unsubscription).
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
	})
}

// handle applies one provider event. The store write happens for every
// event, unconditionally and in delivery order; only the navigation side
// effect is conditional, and it reads the current path fresh each time.
func (c *Coordinator) handle(ev AuthEvent) {
	var user *User
	if ev.Session != nil {
		user = ev.Session.User
	}

	c.store.SetAuth(user, ev.Session)

	c.logger.Debug("auth event applied: %s authenticated=%t", string(ev.Type), user != nil)
	c.record(ev, user)

	if user == nil {
		// No forced navigation on sign-out: protected pages self-redirect
		// through the route guard.
		return
	}

	if c.nav == nil {
		return
	}

	if c.routes.IsPreAuth(c.nav.CurrentPath()) {
		c.nav.Replace(c.routes.Dashboard)
	}
}

func (c *Coordinator) record(ev AuthEvent, user *User) {
	var eventType ActivityEventType
	switch ev.Type {
	case EventSignedIn:
		eventType = ActivityEventSignInSuccess
	case EventSignedOut:
		eventType = ActivityEventSignedOut
	case EventTokenRefreshed:
		eventType = ActivityEventTokenRefreshed
	default:
		return
	}

	event := ActivityEvent{
		EventType:  eventType,
		OccurredAt: time.Now(),
	}

	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}

	if err := normalizeActivitySink(c.activity).Record(context.Background(), event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
