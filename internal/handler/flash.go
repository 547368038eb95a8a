package handler

import (
	"encoding/base64"
	"net/http"
)

// FlashCookieName carries one message across a redirect.
const FlashCookieName = "flash"

// The value is base64 encoded because cookie values cannot hold every
// character a message might contain.
func (p *Pages) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   p.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending message, if any, and deletes the cookie so it
// shows exactly once.
func (p *Pages) popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(FlashCookieName)
	if err != nil || c.Value == "" {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	msg, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}
