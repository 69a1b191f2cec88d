package gate

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RecoveryState is a state of the reset-password entry point.
type RecoveryState string

const (
	// RecoveryPending means the URL fragment has not been parsed yet.
	RecoveryPending RecoveryState = "pending-validation"
	// RecoveryValid means the one-time token checked out; the form is enabled.
	RecoveryValid RecoveryState = "valid"
	// RecoveryInvalid is terminal in-page: the only remedy is a new link.
	RecoveryInvalid RecoveryState = "invalid"
	// RecoveryCompleted is the terminal display state after a successful update.
	RecoveryCompleted RecoveryState = "completed"
)

const recoveryTokenType = "recovery"

// DefaultRecoveryRedirectDelay is the UX courtesy pause before leaving the
// completed screen for the login page.
const DefaultRecoveryRedirectDelay = 3 * time.Second

// RecoveryToken is the one-time credential carried in the reset-password
// page URL fragment.
type RecoveryToken struct {
	AccessToken string
	Type        string
}

// Valid reports whether the token authorizes the password-reset form.
// Only a token with type "recovery" and a non-empty access token counts.
func (t RecoveryToken) Valid() bool {
	return t.Type == recoveryTokenType && t.AccessToken != ""
}

// ParseRecoveryFragment extracts the recovery token from a page URL
// fragment such as "#access_token=abc&type=recovery". A leading '#' is
// tolerated. The token is parsed once on page load and never refreshed.
func ParseRecoveryFragment(fragment string) (RecoveryToken, error) {
	fragment = strings.TrimPrefix(fragment, "#")

	values, err := url.ParseQuery(fragment)
	if err != nil {
		return RecoveryToken{}, ErrRecoveryLinkInvalid
	}

	token := RecoveryToken{
		AccessToken: values.Get("access_token"),
		Type:        values.Get("type"),
	}

	if !token.Valid() {
		return token, ErrRecoveryLinkInvalid
	}

	return token, nil
}

// PasswordUpdater performs the provider's update-password operation using
// the ambient session established from the recovery token.
type PasswordUpdater interface {
	UpdateUserPassword(ctx context.Context, accessToken, password string) error
}

// RecoveryFlow drives the reset-password page: pending-validation on load,
// valid/invalid after the fragment is parsed, completed after a successful
// password update. The completed state schedules a cancellable delayed
// redirect to the login page; Close cancels it if the page is torn down
// first, so nothing fires after unmount.
type RecoveryFlow struct {
	mu       sync.Mutex
	state    RecoveryState
	token    RecoveryToken
	message  string
	updater  PasswordUpdater
	delay    time.Duration
	redirect func(path string)
	loginTo  string
	timer    *time.Timer
	closed   bool
	logger   Logger
	activity ActivitySink
}

// RecoveryFlowOption customizes flow construction.
type RecoveryFlowOption func(*RecoveryFlow)

// WithRecoveryRedirect sets the navigation callback invoked after the
// courtesy delay. Without it the completed state simply sticks.
func WithRecoveryRedirect(fn func(path string)) RecoveryFlowOption {
	return func(f *RecoveryFlow) {
		f.redirect = fn
	}
}

// WithRecoveryDelay overrides the courtesy delay (useful for tests).
func WithRecoveryDelay(d time.Duration) RecoveryFlowOption {
	return func(f *RecoveryFlow) {
		if d >= 0 {
			f.delay = d
		}
	}
}

// WithRecoveryLoginPath overrides the redirect target.
func WithRecoveryLoginPath(path string) RecoveryFlowOption {
	return func(f *RecoveryFlow) {
		if path != "" {
			f.loginTo = path
		}
	}
}

// WithRecoveryLogger overrides the default logger.
func WithRecoveryLogger(logger Logger) RecoveryFlowOption {
	return func(f *RecoveryFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRecoveryActivitySink configures the sink used for recovery events.
func WithRecoveryActivitySink(sink ActivitySink) RecoveryFlowOption {
	return func(f *RecoveryFlow) {
		f.activity = normalizeActivitySink(sink)
	}
}

// NewRecoveryFlow returns a flow in the pending-validation state.
func NewRecoveryFlow(updater PasswordUpdater, opts ...RecoveryFlowOption) *RecoveryFlow {
	f := &RecoveryFlow{
		state:    RecoveryPending,
		updater:  updater,
		delay:    DefaultRecoveryRedirectDelay,
		loginTo:  DefaultRoutes().Login,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Load parses the fragment and transitions pending → valid | invalid.
// Calling it again once settled is a no-op returning the settled state.
func (f *RecoveryFlow) Load(fragment string) RecoveryState {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != RecoveryPending {
		return f.state
	}

	token, err := ParseRecoveryFragment(fragment)
	if err != nil {
		f.state = RecoveryInvalid
		f.message = ProviderMessage(ErrRecoveryLinkInvalid)
		f.recordLocked(ActivityEventRecoveryRejected, nil)
		return f.state
	}

	f.token = token
	f.state = RecoveryValid
	f.message = ""
	return f.state
}

// State returns the current state.
func (f *RecoveryFlow) State() RecoveryState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Message returns the current user-visible error message, empty when none.
func (f *RecoveryFlow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Token returns the parsed recovery token (zero value unless state is valid
// or completed).
func (f *RecoveryFlow) Token() RecoveryToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// Submit performs the password update. Valid state only. On success the
// flow transitions to completed and schedules the delayed redirect; on
// failure it stays valid, keeps the form usable, and surfaces the
// provider's message verbatim. No automatic retry.
func (f *RecoveryFlow) Submit(ctx context.Context, password string) error {
	f.mu.Lock()
	if f.state != RecoveryValid {
		state := f.state
		f.mu.Unlock()
		if state == RecoveryInvalid || state == RecoveryPending {
			return ErrRecoveryLinkInvalid
		}
		return ErrNoActiveSession
	}
	token := f.token
	f.mu.Unlock()

	err := f.updater.UpdateUserPassword(ctx, token.AccessToken, password)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.message = ProviderMessage(err)
		return err
	}

	f.state = RecoveryCompleted
	f.message = ""
	f.recordLocked(ActivityEventRecoveryCompleted, map[string]any{
		"redirect_in": f.delay.String(),
	})
	f.scheduleRedirectLocked()
	return nil
}

// Close cancels the pending redirect, if any. Idempotent. After Close no
// callback fires: the flow guards against writes after unmount.
func (f *RecoveryFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *RecoveryFlow) scheduleRedirectLocked() {
	if f.redirect == nil || f.closed {
		return
	}

	target := f.loginTo
	f.timer = time.AfterFunc(f.delay, func() {
		f.mu.Lock()
		closed := f.closed
		f.timer = nil
		f.mu.Unlock()
		if closed {
			return
		}
		f.redirect(target)
	})
}

func (f *RecoveryFlow) recordLocked(eventType ActivityEventType, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(f.activity).Record(context.Background(), event); err != nil {
		f.logger.Warn("activity sink error during recovery: %v", err)
	}
}
