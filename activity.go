package gate

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess     ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure     ActivityEventType = "auth.signin.failure"
	ActivityEventSignUpSuccess     ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure     ActivityEventType = "auth.signup.failure"
	ActivityEventSignedOut         ActivityEventType = "auth.signout"
	ActivityEventTokenRefreshed    ActivityEventType = "auth.token.refreshed"
	ActivityEventRecoveryRequested ActivityEventType = "auth.recovery.requested"
	ActivityEventRecoveryCompleted ActivityEventType = "auth.recovery.completed"
	ActivityEventRecoveryRejected  ActivityEventType = "auth.recovery.rejected"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
