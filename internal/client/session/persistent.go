package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/spendsmart/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/spendsmart/internal/dbx"
	"github.com/dmitrijs2005/spendsmart/internal/logging"
)

// Persisted metadata keys. No other package reads or writes them.
const (
	KeySubjectID     = "subject_id"
	KeyAuthToken     = "auth_token"
	KeyDisplayName   = "display_name"
	KeyEmail         = "email"
	KeyRole          = "role"
	KeyIssuedAt      = "issued_at"
	KeyAuthenticated = "authenticated"
)

// Keys lists every persisted session key.
var Keys = []string{
	KeySubjectID, KeyAuthToken, KeyDisplayName, KeyEmail, KeyRole, KeyIssuedAt, KeyAuthenticated,
}

const authenticatedMarker = "true"

// Sealer protects the auth token at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// PersistentStore keeps the session in the metadata table of the local
// SQLite database.
type PersistentStore struct {
	notifier

	db     *sql.DB
	sealer Sealer
	logger logging.Logger

	mu      sync.RWMutex
	current *Session
}

var _ Store = (*PersistentStore)(nil)

type Option func(*PersistentStore)

// WithSealer seals the auth token before it is written.
func WithSealer(s Sealer) Option {
	return func(p *PersistentStore) { p.sealer = s }
}

func WithLogger(l logging.Logger) Option {
	return func(p *PersistentStore) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPersistentStore(db *sql.DB, opts ...Option) *PersistentStore {
	p := &PersistentStore{db: db, logger: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PersistentStore) Init(ctx context.Context) (*Session, error) {
	values, err := metadata.NewSQLiteRepository(p.db).GetMany(ctx, Keys)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if len(values) == 0 {
		p.setCurrent(nil)
		return nil, nil
	}

	s, err := p.decode(values)
	if err != nil {
		p.logger.Warn(ctx, "discarding incomplete persisted session", "error", err)
		if werr := p.wipe(ctx); werr != nil {
			return nil, werr
		}
		p.setCurrent(nil)
		return nil, nil
	}

	p.setCurrent(s)
	p.logger.Debug(ctx, "session restored", "subject_id", s.SubjectID, "role", s.Role)
	return s.clone(), nil
}

func (p *PersistentStore) Current() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone()
}

func (p *PersistentStore) Set(ctx context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	values, err := p.encode(s)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for _, k := range Keys {
			if err := repo.Set(ctx, k, values[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	p.setCurrent(&s)
	p.publish(&s)
	return nil
}

func (p *PersistentStore) Patch(ctx context.Context, patch Patch) error {
	cur := p.Current()
	if cur == nil {
		return ErrNoSession
	}
	next := patch.apply(*cur)
	if err := next.Validate(); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if next.DisplayName != cur.DisplayName {
			if err := repo.Set(ctx, KeyDisplayName, []byte(next.DisplayName)); err != nil {
				return err
			}
		}
		if next.Email != cur.Email {
			if err := repo.Set(ctx, KeyEmail, []byte(next.Email)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("patch session: %w", err)
	}

	p.setCurrent(&next)
	p.publish(&next)
	return nil
}

func (p *PersistentStore) Clear(ctx context.Context) error {
	if err := p.wipe(ctx); err != nil {
		return err
	}
	p.setCurrent(nil)
	p.publish(nil)
	return nil
}

func (p *PersistentStore) wipe(ctx context.Context) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).DeleteMany(ctx, Keys)
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (p *PersistentStore) setCurrent(s *Session) {
	p.mu.Lock()
	p.current = s.clone()
	p.mu.Unlock()
}

func (p *PersistentStore) encode(s Session) (map[string][]byte, error) {
	token := []byte(s.AuthToken)
	if p.sealer != nil {
		sealed, err := p.sealer.Seal(token)
		if err != nil {
			return nil, fmt.Errorf("seal token: %w", err)
		}
		token = sealed
	}

	return map[string][]byte{
		KeySubjectID:     []byte(s.SubjectID),
		KeyAuthToken:     token,
		KeyDisplayName:   []byte(s.DisplayName),
		KeyEmail:         []byte(s.Email),
		KeyRole:          []byte(s.Role),
		KeyIssuedAt:      []byte(s.IssuedAt.UTC().Format(time.RFC3339Nano)),
		KeyAuthenticated: []byte(authenticatedMarker),
	}, nil
}

var errIncomplete = errors.New("persisted session is incomplete")

func (p *PersistentStore) decode(values map[string][]byte) (*Session, error) {
	for _, k := range Keys {
		if _, ok := values[k]; !ok {
			return nil, fmt.Errorf("%w: missing %s", errIncomplete, k)
		}
	}
	if string(values[KeyAuthenticated]) != authenticatedMarker {
		return nil, fmt.Errorf("%w: not marked authenticated", errIncomplete)
	}

	role, err := ParseRole(string(values[KeyRole]))
	if err != nil {
		return nil, err
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, string(values[KeyIssuedAt]))
	if err != nil {
		return nil, fmt.Errorf("issued_at: %w", err)
	}

	token := values[KeyAuthToken]
	if p.sealer != nil {
		token, err = p.sealer.Open(token)
		if err != nil {
			return nil, fmt.Errorf("open token: %w", err)
		}
	}

	s := &Session{
		SubjectID:   string(values[KeySubjectID]),
		DisplayName: string(values[KeyDisplayName]),
		Email:       string(values[KeyEmail]),
		Role:        role,
		AuthToken:   string(token),
		IssuedAt:    issuedAt,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
