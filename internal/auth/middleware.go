package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
)

// SessionCookieName is the HttpOnly cookie holding the signed session token.
const SessionCookieName = "session"

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or overwrite our values.
type contextKey string

const sessionKey contextKey = "session"

// SessionFinder loads a live session by ID. *sqlite.DB satisfies it.
type SessionFinder interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
}

// Middleware resolves the session cookie into a *model.Session in the request
// context.
type Middleware struct {
	tokens   *TokenService
	sessions SessionFinder
	logger   *slog.Logger
}

func NewMiddleware(tokens *TokenService, sessions SessionFinder, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, sessions: sessions, logger: logger}
}

// OptionalAuth attaches the session to the context when the cookie is valid
// and lets the request through either way. Pages like the home page use it to
// show "signed in as" without requiring sign-in.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			s, err := m.extractSession(r)
			if err != nil {
				m.sessionLookupFailed(w, r, err)
				return
			}
			if s != nil {
				r = r.WithContext(WithSession(r.Context(), s))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth sends anonymous visitors to the login page. It also resolves the
// cookie itself, so it works with or without OptionalAuth earlier in the chain.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			s, err := m.extractSession(r)
			if err != nil {
				m.sessionLookupFailed(w, r, err)
				return
			}
			if s == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// extractSession returns (nil, nil) for any cookie that does not lead to a
// live session: missing, tampered, expired, or pointing at a deleted row.
// Any other lookup failure is returned so the request fails instead of
// quietly continuing as anonymous.
func (m *Middleware) extractSession(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	sessionID, err := m.tokens.Validate(cookie.Value)
	if err != nil {
		m.logger.Debug("rejecting session cookie", slog.String("error", err.Error()))
		return nil, nil
	}

	s, err := m.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, apperror.ErrNotFound) {
		m.logger.Debug("session not found", slog.String("sessionID", sessionID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Middleware) sessionLookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Error("session lookup failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the signed-in session, or (nil, false) for an
// anonymous request.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}

// UserIDFromContext retrieves the signed-in user's ID from the request context.
// Returns ("", false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

// SetSessionCookie stores a signed session token in an HttpOnly cookie.
// SameSite=Lax keeps the cookie off cross-site POSTs.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
