package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
	"github.com/sakif/trading-post/internal/security"
)

// MessageService sends, replies to, and deletes messages about items.
type MessageService struct {
	items    repository.ItemRepository
	messages repository.MessageRepository
	validate *validator.Validate
	clean    *security.TextSanitizer
	events   EventRecorder
	logger   *slog.Logger
}

func NewMessageService(
	items repository.ItemRepository,
	messages repository.MessageRepository,
	events EventRecorder,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		items:    items,
		messages: messages,
		validate: newValidator(),
		clean:    security.NewTextSanitizer(),
		events:   recorderOrNop(events),
		logger:   logger,
	}
}

// Send addresses a message about itemID to the item's owner.
func (s *MessageService) Send(ctx context.Context, senderID, itemID, body string) (*model.Message, error) {
	if senderID == "" {
		return nil, apperror.Unauthorized("sign in to send messages")
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service/messages: fetching item %s: %w", itemID, err)
	}

	body, err = s.checkBody(body)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: item.UserID,
		ItemID:     item.ID,
		Body:       body,
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/messages: sending message: %w", err)
	}

	s.events.RecordEvent(EventMessageSent)
	s.logger.Info("message sent",
		slog.String("messageID", msg.ID),
		slog.String("itemID", item.ID),
		slog.String("senderID", senderID),
	)
	return msg, nil
}

// Reply answers a message. Only its receiver may reply; the reply goes back to
// the original sender about the same item.
func (s *MessageService) Reply(ctx context.Context, userID, messageID, body string) (*model.Message, error) {
	orig, err := s.MessageFor(ctx, userID, messageID, OpReply)
	if err != nil {
		return nil, err
	}

	body, err = s.checkBody(body)
	if err != nil {
		return nil, err
	}

	reply := &model.Message{
		SenderID:   orig.ReceiverID,
		ReceiverID: orig.SenderID,
		ItemID:     orig.ItemID,
		Body:       body,
	}
	if err := s.messages.CreateMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("service/messages: replying to %s: %w", messageID, err)
	}

	s.events.RecordEvent(EventMessageReplied)
	s.logger.Info("message replied",
		slog.String("messageID", reply.ID),
		slog.String("inReplyTo", messageID),
	)
	return reply, nil
}

// Delete removes a message. Only its receiver may delete it.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	if _, err := s.MessageFor(ctx, userID, messageID, OpDelete); err != nil {
		return err
	}

	if err := s.messages.DeleteMessage(ctx, messageID, userID); err != nil {
		return fmt.Errorf("service/messages: deleting %s: %w", messageID, err)
	}

	s.events.RecordEvent(EventMessageDeleted)
	s.logger.Info("message deleted",
		slog.String("messageID", messageID),
		slog.String("userID", userID),
	)
	return nil
}

// MessageFor loads a message and checks that userID may perform op on it.
// The reply and delete forms use it so the GET page is gated like the POST.
func (s *MessageService) MessageFor(ctx context.Context, userID, messageID string, op Operation) (*model.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("service/messages: fetching %s: %w", messageID, err)
	}

	if err := AuthorizeMessage(userID, msg, op); err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			s.events.RecordDenied(string(op))
			s.logger.Warn("message access denied",
				slog.String("messageID", messageID),
				slog.String("userID", userID),
				slog.String("operation", string(op)),
			)
		}
		return nil, err
	}
	return msg, nil
}

// Inbox lists the messages addressed to userID, newest first.
func (s *MessageService) Inbox(ctx context.Context, userID string) ([]model.InboxEntry, error) {
	entries, err := s.messages.MessagesForReceiver(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/messages: listing inbox for %s: %w", userID, err)
	}
	return entries, nil
}

func (s *MessageService) checkBody(body string) (string, error) {
	in := model.MessageInput{Body: s.clean.Clean(body)}
	if err := validateStruct(s.validate, in); err != nil {
		return "", err
	}
	return in.Body, nil
}
