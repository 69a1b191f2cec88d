package supabase

import (
	"fmt"
	"log"
	"sync"

	"github.com/grid78/go-gate"
)

type subscriber struct {
	id int
	fn func(gate.AuthEvent)
}

// OnAuthStateChange registers a callback for every auth event. Callbacks
// run synchronously in registration order; Unsubscribe is idempotent.
func (c *Client) OnAuthStateChange(fn func(gate.AuthEvent)) gate.Unsubscriber {
	if fn == nil {
		return &Subscription{remove: func() {}}
	}

	c.subsMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.subsMu.Unlock()

	return &Subscription{remove: func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}}
}

// Subscription is the handle returned by OnAuthStateChange.
type Subscription struct {
	once   sync.Once
	remove func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

// emit delivers an event to every subscriber. dispatchMu serializes whole
// emissions so deliveries never interleave across goroutines.
func (c *Client) emit(ev gate.AuthEvent) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.subsMu.RLock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.RUnlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

type stdLogger struct{}

func (l stdLogger) Debug(format string, args ...any) { l.print("DBG", format, args...) }
func (l stdLogger) Info(format string, args ...any)  { l.print("INF", format, args...) }
func (l stdLogger) Warn(format string, args ...any)  { l.print("WRN", format, args...) }
func (l stdLogger) Error(format string, args ...any) { l.print("ERR", format, args...) }

func (l stdLogger) print(level, format string, args ...any) {
	log.Printf("[%s] SUPABASE %s", level, fmt.Sprintf(format, args...))
}

func defLogger() gate.Logger {
	return stdLogger{}
}
