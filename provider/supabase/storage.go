package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/grid78/go-gate"
	"github.com/uptrace/bun"
)

// SessionStorage persists the provider session across restarts. Load
// returns (nil, nil) when no session is stored under key.
type SessionStorage interface {
	Save(ctx context.Context, key string, session *gate.Session) error
	Load(ctx context.Context, key string) (*gate.Session, error)
	Clear(ctx context.Context, key string) error
}

// MemoryStorage keeps sessions in process memory. Default when no
// storage is configured; sessions do not survive a restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*gate.Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: map[string]*gate.Session{}}
}

func (m *MemoryStorage) Save(_ context.Context, key string, session *gate.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = session
	return nil
}

func (m *MemoryStorage) Load(_ context.Context, key string) (*gate.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[key], nil
}

func (m *MemoryStorage) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// StoredSession is the Bun model for the session cache.
type StoredSession struct {
	bun.BaseModel `bun:"table:session_cache,alias:sc"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Key       string    `bun:"key,notnull,unique"`
	Payload   []byte    `bun:"payload,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BunStorage persists sessions in a SQL table through Bun. The row ID is
// derived from the storage key so repeated saves target the same row.
type BunStorage struct {
	db *bun.DB
}

func NewBunStorage(db *bun.DB) *BunStorage {
	return &BunStorage{db: db}
}

// Init creates the session cache table when it does not exist yet.
func (s *BunStorage) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*StoredSession)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session cache table")
	}
	return nil
}

func (s *BunStorage) Save(ctx context.Context, key string, session *gate.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}

	id, err := hashid.NewUUID(key)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive session row id")
	}

	model := &StoredSession{
		ID:        id,
		Key:       key,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}

	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStorage) Load(ctx context.Context, key string) (*gate.Session, error) {
	var model StoredSession
	err := s.db.NewSelect().
		Model(&model).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load cached session")
	}

	session := new(gate.Session)
	if err := json.Unmarshal(model.Payload, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode cached session")
	}

	return session, nil
}

func (s *BunStorage) Clear(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StoredSession)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	return err
}

var _ SessionStorage = (*MemoryStorage)(nil)
var _ SessionStorage = (*BunStorage)(nil)
