package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/service"
)

// StateCookieName holds the anti-forgery state between /login and the callback.
const StateCookieName = "oauth_state"

// maxTokenBody bounds the token hand-off request body.
const maxTokenBody = 4096

// AuthHandler manages the Google sign-in flow and disconnect.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin         → login page with a fresh state
//   - HandleCallback      → redirect flow: code → user → session cookie
//   - HandleTokenCallback → token hand-off: posted access token → user → session cookie
//   - HandleDisconnect    → revoke the provider token, end the session
type AuthHandler struct {
	auth   *service.AuthService
	pages  *Pages
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, pages *Pages, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, pages: pages, logger: logger}
}

type loginPage struct {
	AuthURL string
	State   string
}

// HandleLogin renders the login page.
//
// HTTP: GET /login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state and store it in a short-lived cookie. The
// callback must echo it back; a mismatch means the callback was not started
// from this page.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.pages.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.pages.Render(w, r, http.StatusOK, pageLogin, "Log in", loginPage{
		AuthURL: h.auth.LoginURL(state),
		State:   state,
	})
}

// HandleCallback completes the authorization-code redirect flow.
//
// HTTP: GET /oauth/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.checkState(w, r) {
		h.pages.RenderError(w, r, http.StatusUnauthorized, "Invalid state parameter.")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("sign-in declined at provider", slog.String("error", errParam))
		h.pages.Redirect(w, r, "/login", "Sign-in was cancelled.")
		return
	}

	res, err := h.auth.LoginWithCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.pages.Fail(w, r, err, "/login")
		return
	}

	auth.SetSessionCookie(w, res.Token, time.Until(res.Session.ExpiresAt), h.pages.cookieSecure)
	h.pages.Redirect(w, r, "/", "You are now logged in as "+res.User.Email)
}

// HandleTokenCallback completes the token hand-off flow: the sign-in script on
// the login page posts the provider access token as the raw request body.
//
// HTTP: POST /oauth/callback?state=yyy
// Responses are JSON because the caller is a script, not a browser navigation.
func (h *AuthHandler) HandleTokenCallback(w http.ResponseWriter, r *http.Request) {
	if !h.checkState(w, r) {
		writeError(w, apperror.Unauthorized("Invalid state parameter."))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBody))
	if err != nil {
		writeError(w, apperror.ValidationFailed("access_token", "could not read request body"))
		return
	}

	res, err := h.auth.LoginWithAccessToken(r.Context(), strings.TrimSpace(string(body)))
	if err != nil {
		if status, _ := classify(err); status >= 500 {
			h.logger.Warn("token hand-off failed", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, time.Until(res.Session.ExpiresAt), h.pages.cookieSecure)
	h.pages.setFlash(w, "You are now logged in as "+res.User.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Welcome, " + res.User.Email + "!",
		"redirect": "/",
	})
}

// HandleDisconnect revokes the provider token and ends the session.
//
// HTTP: GET /oauth/disconnect
func (h *AuthHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.pages.RenderError(w, r, http.StatusUnauthorized, "Current user not connected.")
		return
	}

	err := h.auth.Logout(r.Context(), session)

	// The local session is gone unless the delete itself failed; either way
	// the browser should stop presenting the cookie.
	auth.ClearSessionCookie(w, h.pages.cookieSecure)

	if err != nil {
		if errors.Is(err, apperror.ErrUpstream) {
			h.pages.RenderError(w, r, http.StatusBadGateway,
				"You are signed out here, but Google did not confirm the token was revoked.")
			return
		}
		h.pages.Fail(w, r, err, "/")
		return
	}

	h.pages.Redirect(w, r, "/", "Successfully disconnected.")
}

// checkState compares the state parameter with the cookie set by /login and
// clears the cookie. The state is single-use whether or not it matched.
func (h *AuthHandler) checkState(w http.ResponseWriter, r *http.Request) bool {
	got := r.URL.Query().Get("state")

	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" || got == "" || got != c.Value {
		h.logger.Warn("oauth state mismatch", slog.String("path", r.URL.Path))
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.pages.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}
