package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/hkd-sync/internal/domain/repository"
)

const sessionSlot = "session"

// SessionStore ranura "session" de la tabla slots.
type SessionStore struct {
	db *DB
}

var _ repository.SessionStore = (*SessionStore)(nil)

// NewSessionStore construye la ranura de sesión.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Save(ctx context.Context, token string) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sessionSlot, token, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.db.QueryRowContext(ctx, "SELECT value FROM slots WHERE name = ?", sessionSlot).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return token, nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.db.ExecContext(ctx, "DELETE FROM slots WHERE name = ?", sessionSlot); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
