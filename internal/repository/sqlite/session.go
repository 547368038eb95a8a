package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// CreateSession stores a session. The caller supplies ID and ExpiresAt.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = db.now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, email, access_token, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Email, s.AccessToken, s.CreatedAt, s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}
	return nil
}

// GetSession returns a live session. Expired sessions are reported as not found.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, email, access_token, created_at, expires_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.Email, &s.AccessToken, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	if s.Expired(db.now()) {
		return nil, apperror.NotFound("session", id)
	}
	return &s, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error:
// logout must succeed even if the row already expired and was swept.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps sessions past their expiry and returns how many
// were removed.
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, db.now())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
