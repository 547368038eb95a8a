package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
)

var _ repository.LocationRepository = (*DB)(nil)

// CreateLocation inserts a location. Only the seed command calls this.
func (db *DB) CreateLocation(ctx context.Context, loc *model.Location) error {
	loc.ID = xid.New().String()
	loc.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO locations (id, name, created_at) VALUES (?, ?, ?)`,
		loc.ID, loc.Name, loc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating location %q: %w", loc.Name, err)
	}
	return nil
}

func (db *DB) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	var loc model.Location
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("location", id)
		}
		return nil, fmt.Errorf("sqlite: getting location %s: %w", id, err)
	}
	return &loc, nil
}

// GetLocationByName returns the first location with exactly this name.
// Names are unique by convention only, so ties resolve to the oldest row.
func (db *DB) GetLocationByName(ctx context.Context, name string) (*model.Location, error) {
	var loc model.Location
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM locations
		 WHERE name = ? ORDER BY created_at, id LIMIT 1`, name,
	).Scan(&loc.ID, &loc.Name, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: fmt.Sprintf("location not found with name %s", name),
			}
		}
		return nil, fmt.Errorf("sqlite: getting location %q: %w", name, err)
	}
	return &loc, nil
}

// ListLocations returns all locations in alphabetical order.
// SQLite's default BINARY collation makes the ordering case-sensitive.
func (db *DB) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, created_at FROM locations ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing locations: %w", err)
	}
	defer rows.Close()

	locations := []model.Location{}
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning location row: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating location rows: %w", err)
	}
	return locations, nil
}
