package service

import (
	"fmt"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
)

// Operation names what a user is trying to do to an item or message.
type Operation string

const (
	OpView   Operation = "view"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
	OpReply  Operation = "reply"
)

// NotAuthorizedMessage is shown to users whose request was denied.
const NotAuthorizedMessage = "User not authorized"

// AuthorizeItem allows view (of the owner's private page), edit, and delete
// only for the item's owner.
//
// This is a pure function of the loaded item and the requesting user, so it is
// always evaluated before any write; a denied request leaves the row untouched.
func AuthorizeItem(userID string, item *model.Item, op Operation) error {
	switch op {
	case OpView, OpEdit, OpDelete:
	default:
		return fmt.Errorf("service/access: unsupported item operation %q", op)
	}

	if userID == "" || item == nil || item.UserID != userID {
		return apperror.Forbidden(NotAuthorizedMessage)
	}
	return nil
}

// AuthorizeMessage allows reply and delete only for the loaded message's
// receiver. The sender of a message has no rights over it once sent.
func AuthorizeMessage(userID string, msg *model.Message, op Operation) error {
	switch op {
	case OpReply, OpDelete:
	default:
		return fmt.Errorf("service/access: unsupported message operation %q", op)
	}

	if userID == "" || msg == nil || msg.ReceiverID != userID {
		return apperror.Forbidden(NotAuthorizedMessage)
	}
	return nil
}
