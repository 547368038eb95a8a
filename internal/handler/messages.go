package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/service"
)

// MessageHandler serves the inbox and the send, reply and delete forms.
type MessageHandler struct {
	messages *service.MessageService
	catalog  *service.CatalogService
	users    *service.AuthService
	pages    *Pages
	logger   *slog.Logger
}

func NewMessageHandler(
	messages *service.MessageService,
	catalog *service.CatalogService,
	users *service.AuthService,
	pages *Pages,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		catalog:  catalog,
		users:    users,
		pages:    pages,
		logger:   logger,
	}
}

type inboxPage struct {
	Messages []model.InboxEntry
}

type messagePage struct {
	Message *model.Message
	Body    string
	Errors  map[string]string
}

// HandleSend messages an item's owner, then returns the sender to the
// location they were browsing.
//
// HTTP: POST /items/{id}
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "id")
	body := r.PostFormValue("message")

	if _, err := h.messages.Send(r.Context(), userID, itemID, body); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			item, ierr := h.catalog.Item(r.Context(), itemID)
			if ierr != nil {
				h.pages.Fail(w, r, ierr, "/")
				return
			}
			renderItem(h.pages, w, r, http.StatusUnprocessableEntity, item, body, fieldErrors(err))
			return
		}
		h.pages.Fail(w, r, err, "/")
		return
	}

	h.pages.Redirect(w, r, h.browsingPage(r, userID), "Message sent!")
}

// browsingPage is the signed-in user's current location listing, or the home
// page if they have not browsed one yet.
func (h *MessageHandler) browsingPage(r *http.Request, userID string) string {
	user, err := h.users.CurrentUser(r.Context(), userID)
	if err != nil {
		h.logger.Warn("looking up sender after send", slog.String("error", err.Error()))
		return "/"
	}
	if user.LocationID == nil {
		return "/"
	}
	return "/locations/" + *user.LocationID + "/"
}

// HandleInbox lists messages addressed to the signed-in user.
//
// HTTP: GET /user/messages
func (h *MessageHandler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	entries, err := h.messages.Inbox(r.Context(), userID)
	if err != nil {
		h.pages.Fail(w, r, err, "/")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageMessages, "Messages", inboxPage{Messages: entries})
}

// HandleReplyForm shows the reply form, receiver only.
//
// HTTP: GET /messages/{id}/reply
func (h *MessageHandler) HandleReplyForm(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	msg, err := h.messages.MessageFor(r.Context(), userID, chi.URLParam(r, "id"), service.OpReply)
	if err != nil {
		h.pages.Fail(w, r, err, "/user/messages")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageReply, "Reply", messagePage{Message: msg})
}

// HandleReply sends the reply back to the original sender.
//
// HTTP: POST /messages/{id}/reply
func (h *MessageHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	messageID := chi.URLParam(r, "id")
	body := r.PostFormValue("message")

	if _, err := h.messages.Reply(r.Context(), userID, messageID, body); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			// Reply already authorized the user before validating.
			msg, merr := h.messages.MessageFor(r.Context(), userID, messageID, service.OpReply)
			if merr != nil {
				h.pages.Fail(w, r, merr, "/user/messages")
				return
			}
			h.pages.Render(w, r, http.StatusUnprocessableEntity, pageReply, "Reply", messagePage{
				Message: msg,
				Body:    body,
				Errors:  fieldErrors(err),
			})
			return
		}
		h.pages.Fail(w, r, err, "/user/messages")
		return
	}

	h.pages.Redirect(w, r, "/user/messages", "Reply sent!")
}

// HandleDeleteForm asks for confirmation, receiver only.
//
// HTTP: GET /messages/{id}/delete
func (h *MessageHandler) HandleDeleteForm(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	msg, err := h.messages.MessageFor(r.Context(), userID, chi.URLParam(r, "id"), service.OpDelete)
	if err != nil {
		h.pages.Fail(w, r, err, "/user/messages")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageMessageDelete, "Delete message", messagePage{Message: msg})
}

// HandleDelete removes the message.
//
// HTTP: POST /messages/{id}/delete
func (h *MessageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.messages.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.pages.Fail(w, r, err, "/user/messages")
		return
	}
	h.pages.Redirect(w, r, "/user/messages", "Message deleted!")
}
