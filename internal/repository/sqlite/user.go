package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, location_id, created_at`

// ResolveByEmail returns the user with the given email, creating it first if
// the email has never been seen.
//
// ATOMIC LOOKUP-OR-CREATE:
// A naive "SELECT, and INSERT if missing" lets two concurrent first logins for
// the same email both miss and both insert. Instead we lean on the UNIQUE(email)
// constraint:
//
//  1. INSERT ... ON CONFLICT(email) DO NOTHING  → inserts at most one row, ever
//  2. SELECT ... WHERE email = ?                → reads whichever row won
//
// Both statements are single-row atomic operations, so every caller gets the
// same ID no matter how the requests interleave.
//
// The name is only recorded on first insert; existing users keep theirs.
func (db *DB) ResolveByEmail(ctx context.Context, email, name string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		xid.New().String(),
		name,
		email,
		db.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting user %s: %w", email, err)
	}

	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		// The row was either inserted above or already existed, so a NotFound
		// here is a storage fault, not a missing user.
		return nil, fmt.Errorf("sqlite: resolving user %s: %w", email, err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email.
//
// Only sql.ErrNoRows becomes apperror.NotFound. Any other failure (locked
// database, closed pool, cancelled context) is returned as-is so callers never
// mistake an outage for "this user does not exist".
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: fmt.Sprintf("user not found with email %s", email),
			}
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// SetUserLocation records the location the user is currently browsing.
func (db *DB) SetUserLocation(ctx context.Context, userID, locationID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET location_id = ? WHERE id = ?`,
		locationID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting location for user %s: %w", userID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u   model.User
		loc sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &loc, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.LocationID = stringPtr(loc)
	return &u, nil
}
