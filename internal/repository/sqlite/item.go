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

var _ repository.ItemRepository = (*DB)(nil)

const itemColumns = `i.id, i.name, i.description, i.cardset, i.condition, i.price,
	i.quantity, i.location_id, i.user_id, i.created_at`

// scanner is satisfied by both *sql.Row and *sql.Rows, so one scan function
// serves single-row lookups and listings.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.Item, error) {
	var (
		it  model.Item
		loc sql.NullString
	)
	err := s.Scan(
		&it.ID, &it.Name, &it.Description, &it.Cardset, &it.Condition, &it.Price,
		&it.Quantity, &loc, &it.UserID, &it.CreatedAt,
	)
	it.LocationID = stringPtr(loc)
	return it, err
}

// CreateItem inserts a new item. ID and CreatedAt are assigned here and
// written back into item (pointer receiver).
func (db *DB) CreateItem(ctx context.Context, item *model.Item) error {
	item.ID = xid.New().String()
	item.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO items (id, name, description, cardset, condition, price,
		                    quantity, location_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Name,
		item.Description,
		item.Cardset,
		item.Condition,
		item.Price,
		item.Quantity,
		nullString(item.LocationID),
		item.UserID,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating item: %w", err)
	}
	return nil
}

func (db *DB) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items i WHERE i.id = ?`, id)

	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("item", id)
		}
		return nil, fmt.Errorf("sqlite: getting item %s: %w", id, err)
	}
	return &it, nil
}

// UpdateItem writes the editable fields. user_id and created_at are never in
// the SET list, and the WHERE clause includes the owner so a row belonging to
// someone else can't be touched even if the caller skipped its checks.
func (db *DB) UpdateItem(ctx context.Context, item *model.Item) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE items
		 SET name = ?, description = ?, cardset = ?, condition = ?, price = ?,
		     quantity = ?, location_id = ?
		 WHERE id = ? AND user_id = ?`,
		item.Name,
		item.Description,
		item.Cardset,
		item.Condition,
		item.Price,
		item.Quantity,
		nullString(item.LocationID),
		item.ID,
		item.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating item %s: %w", item.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", item.ID)
	}
	return nil
}

func (db *DB) DeleteItem(ctx context.Context, id, ownerID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting item %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", id)
	}
	return nil
}

// ListItems returns every item, newest first.
func (db *DB) ListItems(ctx context.Context) ([]model.Item, error) {
	return db.queryItems(ctx, "listing items",
		`SELECT `+itemColumns+` FROM items i ORDER BY i.created_at DESC, i.id DESC`)
}

// RecentItems returns the n most recently created items.
// Items created in the same instant are ordered by ID descending; xids sort
// by creation time, so later inserts still come first.
func (db *DB) RecentItems(ctx context.Context, n int) ([]model.Item, error) {
	if n <= 0 {
		return []model.Item{}, nil
	}
	return db.queryItems(ctx, "listing recent items",
		`SELECT `+itemColumns+` FROM items i
		 ORDER BY i.created_at DESC, i.id DESC
		 LIMIT ?`, n)
}

func (db *DB) ItemsByOwner(ctx context.Context, userID string) ([]model.Item, error) {
	return db.queryItems(ctx, "listing items by owner",
		`SELECT `+itemColumns+` FROM items i
		 WHERE i.user_id = ?
		 ORDER BY i.created_at DESC, i.id DESC`, userID)
}

// ItemsByLocation returns the items listed at a location.
//
// An item belongs to a location when its own location_id matches, or when it
// has no location of its own and its owner is currently at that location.
func (db *DB) ItemsByLocation(ctx context.Context, locationID string) ([]model.Item, error) {
	return db.queryItems(ctx, "listing items by location",
		`SELECT `+itemColumns+` FROM items i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.location_id = ?
		    OR (i.location_id IS NULL AND u.location_id = ?)
		 ORDER BY i.name ASC, i.id ASC`, locationID, locationID)
}

func (db *DB) queryItems(ctx context.Context, op, query string, args ...any) ([]model.Item, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", op, err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}
	return items, nil
}
