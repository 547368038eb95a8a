// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, renders pages, sets cookies
//	Service (Business layer) → validates, authorizes, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// in-memory fakes. They accept plain values (IDs, model.ItemInput), never
// *http.Request, and return apperror values the handler maps to responses.
//
// ORDER OF CHECKS FOR EVERY MUTATION:
//  1. Load the target (missing → apperror.ErrNotFound)
//  2. Authorize (wrong user → apperror.ErrForbidden)
//  3. Validate input (bad fields → apperror.ErrValidation)
//  4. Write
//
// A request that fails any of steps 1-3 has written nothing.
package service

// EventRecorder receives business events for metrics. *metrics.Collector
// implements it; nil means "don't record".
type EventRecorder interface {
	RecordEvent(event string)
	RecordDenied(operation string)
}

// Event names passed to EventRecorder.RecordEvent.
const (
	EventLogin          = "login"
	EventLogout         = "logout"
	EventItemCreated    = "item_created"
	EventItemUpdated    = "item_updated"
	EventItemDeleted    = "item_deleted"
	EventMessageSent    = "message_sent"
	EventMessageReplied = "message_replied"
	EventMessageDeleted = "message_deleted"
)

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string)  {}
func (nopRecorder) RecordDenied(string) {}

func recorderOrNop(r EventRecorder) EventRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
