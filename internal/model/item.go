package model

import "time"

// Item is a catalog listing owned by exactly one user.
//
// OWNERSHIP:
// UserID is set once at creation and never changes. Only the identity matching
// UserID may edit or delete the item (see service.AuthorizeItem).
//
// Price is kept as a decimal string ("100.00") so it round-trips exactly
// between the form, the database, and the JSON feed.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cardset     string    `json:"cardset"`
	Condition   string    `json:"condition"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	LocationID  *string   `json:"locationId,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ItemInput holds the user-editable fields of an Item, as submitted by the
// add and edit forms. The validate tags are checked by the service layer before
// any row is written.
type ItemInput struct {
	Name        string `form:"name" validate:"required,max=250"`
	Description string `form:"description" validate:"max=2000"`
	Cardset     string `form:"cardset" validate:"max=250"`
	Condition   string `form:"condition" validate:"max=250"`
	Price       string `form:"price" validate:"required,price"`
	Quantity    int    `form:"quantity" validate:"gte=1,lte=100000"`
	LocationID  string `form:"location_id"`
}
