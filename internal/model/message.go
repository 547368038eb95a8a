package model

import "time"

// Message is a directed note between two users about a specific Item.
//
// Messages are immutable. Only the receiver may reply to or delete one.
// A reply flips direction: the replying receiver becomes the sender and the
// original sender becomes the receiver, while ItemID stays the same.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	ItemID     string    `json:"itemId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InboxEntry is a Message joined with the fields the inbox page displays.
type InboxEntry struct {
	Message
	ItemName    string
	SenderEmail string
}

// MessageInput is the body of a new message or reply.
type MessageInput struct {
	Body string `form:"message" validate:"required,max=2000"`
}
