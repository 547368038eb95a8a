// Package model defines the data structures used throughout the application.
//
// These are plain records: no persistence or serialization behaviour is attached.
// The repository layer reads and writes them, and the handler layer converts them
// into whatever shape a page or JSON feed needs.
package model

import "time"

// User represents a trader account.
//
// Users are keyed by email: the OAuth provider asserts an email address and
// identity resolution maps it onto exactly one row. We generate our own internal
// string ID (xid) rather than reusing the provider's subject so the rest of the
// schema never depends on a third party's numbering.
//
// LocationID is the "current location" of the trader. It starts empty and is
// updated whenever a signed-in user browses a location's listing.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	LocationID *string   `json:"locationId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
