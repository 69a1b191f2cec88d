package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/grid78/go-gate"
)

var _ gate.IdentityClient = (*Client)(nil)
var _ gate.AuthStream = (*Client)(nil)

// Client is the GoTrue HTTP client. All operations that change session
// state emit the matching auth event after the local session is adopted,
// so subscribers always observe state in operation order.
type Client struct {
	cfg       Config
	http      *http.Client
	logger    gate.Logger
	storage   SessionStorage
	validator *TokenValidator

	mu           sync.Mutex
	current      *gate.Session
	refreshTimer *time.Timer

	dispatchMu sync.Mutex
	subsMu     sync.RWMutex
	subs       []subscriber
	nextSub    int
}

// New builds a client. Construction never fails: missing configuration is
// surfaced per call as gate.ErrNotConfigured.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger()
	}

	storage := cfg.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}

	if !cfg.Configured() {
		logger.Warn("provider URL and/or anon key missing; all identity calls will fail until configured")
	}

	client := &Client{
		cfg:     cfg,
		http:    httpClient,
		logger:  logger,
		storage: storage,
	}

	// With a shared secret we can vet restored tokens locally. JWKS
	// validation fetches keys over the network, so it stays opt-in via
	// NewTokenValidator.
	if cfg.JWTSecret != "" {
		client.validator, _ = NewTokenValidator(cfg)
	}

	return client
}

// CurrentSession returns the session the client currently holds.
func (c *Client) CurrentSession() *gate.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Restore loads the persisted session, refreshing it when stale, and emits
// INITIAL_SESSION either way. Call once at application start, before the
// Coordinator subscribes readers that expect a primed store.
func (c *Client) Restore(ctx context.Context) error {
	session, err := c.storage.Load(ctx, c.cfg.storageKey())
	if err != nil {
		c.logger.Warn("session restore failed: %v", err)
		c.emit(gate.AuthEvent{Type: gate.EventInitialSession})
		return err
	}

	if session == nil {
		c.emit(gate.AuthEvent{Type: gate.EventInitialSession})
		return nil
	}

	stale := session.Expired() || session.ExpiresWithin(c.cfg.refreshMargin())
	if !stale && c.validator != nil {
		if _, err := c.validator.Validate(session.AccessToken); err != nil {
			c.logger.Warn("restored access token rejected: %v", err)
			stale = true
		}
	}

	if stale {
		if session.RefreshToken == "" {
			c.clearSession(ctx, gate.EventInitialSession)
			return nil
		}
		refreshed, err := c.refreshWith(ctx, session.RefreshToken)
		if err != nil {
			c.clearSession(ctx, gate.EventInitialSession)
			return err
		}
		c.adopt(ctx, refreshed, gate.EventInitialSession)
		return nil
	}

	c.adopt(ctx, session, gate.EventInitialSession)
	return nil
}

// SignInWithPassword implements the password grant. A successful call
// adopts the session and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*gate.Session, error) {
	session := new(gate.Session)
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": password}, "", session)
	if err != nil {
		return nil, err
	}

	c.adopt(ctx, session, gate.EventSignedIn)
	return session, nil
}

// SignUp registers a new account. When the provider requires email
// confirmation no session is returned and PendingConfirmation is set;
// with auto-confirm enabled the session is adopted and SIGNED_IN emitted.
func (c *Client) SignUp(ctx context.Context, email, password string) (*gate.SignUpResult, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, "/signup", nil,
		map[string]string{"email": email, "password": password}, "", &raw)
	if err != nil {
		return nil, err
	}

	session := new(gate.Session)
	if err := json.Unmarshal(raw, session); err == nil && session.AccessToken != "" {
		c.adopt(ctx, session, gate.EventSignedIn)
		return &gate.SignUpResult{User: session.User, Session: session}, nil
	}

	user := new(gate.User)
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected sign-up response")
	}

	return &gate.SignUpResult{User: user, PendingConfirmation: true}, nil
}

// SignOut revokes the session server-side and clears local state. Local
// state clears and SIGNED_OUT fires even when the revocation call fails:
// the user asked to leave.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()

	var err error
	if session != nil && session.AccessToken != "" {
		err = c.do(ctx, http.MethodPost, "/logout", nil, nil, session.AccessToken, nil)
		if err != nil {
			c.logger.Warn("provider logout call failed: %v", err)
		}
	}

	c.clearSession(ctx, gate.EventSignedOut)
	return err
}

// ResetPasswordForEmail asks the provider to send the recovery email.
// Direct result only: no session change, no event.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email string, opts gate.ResetOptions) error {
	query := url.Values{}
	if opts.RedirectTo != "" {
		query.Set("redirect_to", opts.RedirectTo)
	}
	return c.do(ctx, http.MethodPost, "/recover", query,
		map[string]string{"email": email}, "", nil)
}

// UpdateUserPassword updates the password using the ambient recovery
// session carried by accessToken. The one-time token is spent server-side
// whatever the outcome.
func (c *Client) UpdateUserPassword(ctx context.Context, accessToken, password string) error {
	if accessToken == "" {
		return gate.ErrNoActiveSession
	}
	err := c.do(ctx, http.MethodPut, "/user", nil,
		map[string]string{"password": password}, accessToken, nil)
	if err != nil {
		return err
	}

	c.emitWithCurrent(gate.EventUserUpdated)
	return nil
}

// GetUser fetches the user record the access token belongs to. An empty
// token falls back to the current session.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*gate.User, error) {
	if accessToken == "" {
		c.mu.Lock()
		if c.current != nil {
			accessToken = c.current.AccessToken
		}
		c.mu.Unlock()
	}
	if accessToken == "" {
		return nil, gate.ErrNoActiveSession
	}

	user := new(gate.User)
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, accessToken, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserAttributes carries profile fields for UpdateUser.
type UserAttributes struct {
	Phone string         `json:"phone,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// UpdateUser patches the signed-in user's profile and emits USER_UPDATED.
func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*gate.User, error) {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()

	if session == nil || session.AccessToken == "" {
		return nil, gate.ErrNoActiveSession
	}

	user := new(gate.User)
	err := c.do(ctx, http.MethodPut, "/user", nil, attrs, session.AccessToken, user)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.current != nil {
		c.current.User = user
		if err := c.storage.Save(ctx, c.cfg.storageKey(), c.current); err != nil {
			c.logger.Warn("session persist failed: %v", err)
		}
	}
	c.mu.Unlock()

	c.emitWithCurrent(gate.EventUserUpdated)
	return user, nil
}

// RefreshSession exchanges the refresh token for a new session and emits
// TOKEN_REFRESHED. A refresh failure signs the client out: the provider
// has revoked the grant.
func (c *Client) RefreshSession(ctx context.Context) (*gate.Session, error) {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()

	if session == nil || session.RefreshToken == "" {
		return nil, gate.ErrNoActiveSession
	}

	refreshed, err := c.refreshWith(ctx, session.RefreshToken)
	if err != nil {
		c.clearSession(ctx, gate.EventSignedOut)
		return nil, err
	}

	c.adopt(ctx, refreshed, gate.EventTokenRefreshed)
	return refreshed, nil
}

// Close stops the refresh timer and drops subscribers. The client is not
// usable afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	c.stopRefreshLocked()
	c.mu.Unlock()

	c.subsMu.Lock()
	c.subs = nil
	c.subsMu.Unlock()
}

func (c *Client) refreshWith(ctx context.Context, refreshToken string) (*gate.Session, error) {
	session := new(gate.Session)
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refreshToken}, "", session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// adopt installs the session, persists it, schedules the next refresh and
// emits the event — in that order, so subscribers observing the event can
// already read the new session.
func (c *Client) adopt(ctx context.Context, session *gate.Session, event gate.AuthEventType) {
	normalizeExpiry(session)

	c.mu.Lock()
	c.current = session
	if err := c.storage.Save(ctx, c.cfg.storageKey(), session); err != nil {
		c.logger.Warn("session persist failed: %v", err)
	}
	c.scheduleRefreshLocked(session)
	c.mu.Unlock()

	c.emit(gate.AuthEvent{Type: event, Session: session})
}

func (c *Client) clearSession(ctx context.Context, event gate.AuthEventType) {
	c.mu.Lock()
	c.current = nil
	c.stopRefreshLocked()
	if err := c.storage.Clear(ctx, c.cfg.storageKey()); err != nil {
		c.logger.Warn("session clear failed: %v", err)
	}
	c.mu.Unlock()

	c.emit(gate.AuthEvent{Type: event})
}

func (c *Client) scheduleRefreshLocked(session *gate.Session) {
	c.stopRefreshLocked()

	if !c.cfg.AutoRefresh || session == nil || session.RefreshToken == "" {
		return
	}

	exp := session.Expiry()
	if exp.IsZero() {
		return
	}

	wait := time.Until(exp.Add(-c.cfg.refreshMargin()))
	if wait < 0 {
		wait = 0
	}

	c.refreshTimer = time.AfterFunc(wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := c.RefreshSession(ctx); err != nil {
			c.logger.Warn("auto refresh failed: %v", err)
		}
	})
}

func (c *Client) stopRefreshLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

func (c *Client) emitWithCurrent(event gate.AuthEventType) {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()
	c.emit(gate.AuthEvent{Type: event, Session: session})
}

// providerError is the GoTrue error body; field names vary across
// endpoints and versions, so both spellings are accepted.
type providerError struct {
	Code             any    `json:"code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e providerError) text() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Error != "":
		return e.Error
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	if !c.cfg.Configured() {
		return gate.ErrNotConfigured
	}

	endpoint := c.cfg.authURL(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build provider request")
	}

	req.Header.Set("apikey", c.cfg.AnonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.cfg.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	res, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "identity provider unreachable")
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to read provider response")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return c.asProviderError(res.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode provider response")
	}

	return nil
}

// asProviderError keeps the provider's own message verbatim: it is what the
// forms surface to the user.
func (c *Client) asProviderError(status int, body []byte) error {
	perr := providerError{}
	message := ""
	if err := json.Unmarshal(body, &perr); err == nil {
		message = perr.text()
	}
	if message == "" {
		message = fmt.Sprintf("identity provider error (status %d)", status)
	}

	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(status).
		WithTextCode("PROVIDER_ERROR").
		WithMetadata(map[string]any{"status": status})
}

func normalizeExpiry(session *gate.Session) {
	if session == nil {
		return
	}
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Unix() + session.ExpiresIn
	}
}
