package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// User is the identity record issued by the hosted provider. Fields mirror
// the provider's wire format; the application never mutates them directly.
type User struct {
	ID               string         `json:"id,omitempty"`
	Aud              string         `json:"aud,omitempty"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Role             string         `json:"role,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// UUID parses the provider user id.
func (u *User) UUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// DisplayName returns the metadata display name, falling back to email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.UserMetadata != nil {
		if name, ok := u.UserMetadata["display_name"].(string); ok && name != "" {
			return name
		}
	}
	return u.Email
}

// Session is the provider-issued proof of authentication: an opaque token
// bundle paired with the user it belongs to.
type Session struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Expiry returns the access token expiration time, zero when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired() bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return time.Now().After(exp)
}

// ExpiresWithin reports whether the access token expires inside the margin.
func (s *Session) ExpiresWithin(margin time.Duration) bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(exp)
}

func (s Session) String() string {
	user := "<nil>"
	if s.User != nil {
		user = s.User.Email
	}
	return fmt.Sprintf("user=%s type=%s exp=%d", user, s.TokenType, s.ExpiresAt)
}

// AuthEventType enumerates the provider's auth-state-change notifications.
type AuthEventType string

const (
	EventInitialSession   AuthEventType = "INITIAL_SESSION"
	EventSignedIn         AuthEventType = "SIGNED_IN"
	EventSignedOut        AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed   AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEventType = "USER_UPDATED"
	EventPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
)

// AuthEvent is one entry of the provider's ordered auth-event stream.
// Session is nil for sign-out and for an initial event with no stored session.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

// Unsubscriber releases an auth-event subscription. Implementations must
// tolerate repeated calls; the Coordinator releases exactly once.
type Unsubscriber interface {
	Unsubscribe()
}

// AuthStream is the provider's event subscription surface. Events are
// delivered in order for the lifetime of the subscription.
type AuthStream interface {
	OnAuthStateChange(fn func(AuthEvent)) Unsubscriber
}

// Navigator abstracts the navigation side effects the Coordinator performs.
// Replace must not leave a history entry for the page being left.
type Navigator interface {
	CurrentPath() string
	Replace(path string)
}

// NavigatorFunc pairs adapt plain functions into a Navigator.
type NavigatorFunc struct {
	Path    func() string
	Forward func(path string)
}

func (n NavigatorFunc) CurrentPath() string {
	if n.Path == nil {
		return ""
	}
	return n.Path()
}

func (n NavigatorFunc) Replace(path string) {
	if n.Forward != nil {
		n.Forward(path)
	}
}

// SignUpResult is the outcome of a sign-up call. PendingConfirmation is set
// when the provider requires email confirmation before issuing a session.
type SignUpResult struct {
	User                *User
	Session             *Session
	PendingConfirmation bool
}

// ResetOptions carries options for the send-reset-email operation.
type ResetOptions struct {
	// RedirectTo is the absolute URL the emailed recovery link lands on.
	RedirectTo string
}

// IdentityClient is the provider operation surface the credential forms
// consume. Exactly one call is made per accepted form submission.
type IdentityClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string, opts ResetOptions) error
	UpdateUserPassword(ctx context.Context, accessToken, password string) error
}

// Config holds the options the HTTP layer needs.
type Config interface {
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] GATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
