package gate

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/mock"
)

// MockIdentityClient implements IdentityClient
type MockIdentityClient struct {
	mock.Mock
}

func (m *MockIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*Session)
	return session, args.Error(1)
}

func (m *MockIdentityClient) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	args := m.Called(ctx, email, password)
	result, _ := args.Get(0).(*SignUpResult)
	return result, args.Error(1)
}

func (m *MockIdentityClient) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityClient) ResetPasswordForEmail(ctx context.Context, email string, opts ResetOptions) error {
	args := m.Called(ctx, email, opts)
	return args.Error(0)
}

func (m *MockIdentityClient) UpdateUserPassword(ctx context.Context, accessToken, password string) error {
	args := m.Called(ctx, accessToken, password)
	return args.Error(0)
}

// fakeStream is a hand-driven AuthStream for coordinator tests.
type fakeStream struct {
	mu       sync.Mutex
	handlers map[int]func(AuthEvent)
	nextID   int
}

func newFakeStream() *fakeStream {
	return &fakeStream{handlers: map[int]func(AuthEvent){}}
}

func (s *fakeStream) OnAuthStateChange(fn func(AuthEvent)) Unsubscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.handlers[id] = fn
	return &fakeSub{stream: s, id: id}
}

func (s *fakeStream) Emit(ev AuthEvent) {
	s.mu.Lock()
	handlers := make([]func(AuthEvent), 0, len(s.handlers))
	for _, fn := range s.handlers {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

func (s *fakeStream) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

type fakeSub struct {
	stream *fakeStream
	id     int
	once   sync.Once
}

func (u *fakeSub) Unsubscribe() {
	u.once.Do(func() {
		u.stream.mu.Lock()
		defer u.stream.mu.Unlock()
		delete(u.stream.handlers, u.id)
	})
}

// captureSink records activity events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (c *captureSink) Record(_ context.Context, event ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) recorded() []ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

// assertableProviderError builds a rich error whose message ProviderMessage
// surfaces verbatim, the way provider call failures do.
func assertableProviderError(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth)
}

func testUser(email string) *User {
	return &User{ID: "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0", Email: email}
}

func testSession(email string) *Session {
	return &Session{
		AccessToken:  "at-test",
		TokenType:    "bearer",
		RefreshToken: "rt-test",
		ExpiresAt:    9999999999,
		User:         testUser(email),
	}
}
