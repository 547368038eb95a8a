// Package repository declares the storage interfaces the service layer depends on.
//
// Each method is a single query or a single-row mutation. Implementations live in
// subpackages (repository/sqlite); services and tests only ever see these
// interfaces, so a test can swap in an in-memory fake or a fresh ":memory:"
// database per test.
package repository

import (
	"context"

	"github.com/sakif/trading-post/internal/model"
)

// UserRepository stores trader accounts.
type UserRepository interface {
	// ResolveByEmail returns the user for email, inserting it first if the
	// email has never been seen. Safe under concurrent first logins.
	ResolveByEmail(ctx context.Context, email, name string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail returns apperror.ErrNotFound when no row matches and a
	// plain wrapped error for any other failure.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetUserLocation(ctx context.Context, userID, locationID string) error
}

// LocationRepository stores locations. The web app only reads them.
type LocationRepository interface {
	CreateLocation(ctx context.Context, loc *model.Location) error
	GetLocation(ctx context.Context, id string) (*model.Location, error)
	GetLocationByName(ctx context.Context, name string) (*model.Location, error)
	// ListLocations returns every location ordered by name ascending.
	ListLocations(ctx context.Context) ([]model.Location, error)
}

// ItemRepository stores catalog items and answers the listing queries.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *model.Item) error
	GetItem(ctx context.Context, id string) (*model.Item, error)
	// UpdateItem writes the editable fields of item. Only a row owned by
	// item.UserID is touched; otherwise apperror.ErrNotFound is returned.
	UpdateItem(ctx context.Context, item *model.Item) error
	// DeleteItem removes the item if it is owned by ownerID.
	DeleteItem(ctx context.Context, id, ownerID string) error

	ListItems(ctx context.Context) ([]model.Item, error)
	RecentItems(ctx context.Context, n int) ([]model.Item, error)
	ItemsByOwner(ctx context.Context, userID string) ([]model.Item, error)
	ItemsByLocation(ctx context.Context, locationID string) ([]model.Item, error)
}

// MessageRepository stores messages between traders.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	// DeleteMessage removes the message if it was addressed to receiverID.
	DeleteMessage(ctx context.Context, id, receiverID string) error
	MessagesForReceiver(ctx context.Context, receiverID string) ([]model.InboxEntry, error)
}

// SessionRepository stores server-side login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
