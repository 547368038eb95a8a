package model

import "time"

// Location is a place where traders meet (for example a Grand Prix venue).
// Items are grouped by location. Locations are read-only for the web app and
// are created by the seed command.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
