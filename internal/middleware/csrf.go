package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
)

const (
	// CSRFCookieName holds the token. Forms echo it back in CSRFFieldName.
	CSRFCookieName = "csrf_token"
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

type csrfKey struct{}

// CSRFConfig configures the double-submit check.
type CSRFConfig struct {
	CookieSecure bool
	// Exempt lists "METHOD /path" pairs that skip the check. The token
	// hand-off callback is exempt: its body is a raw access token, and it is
	// protected by the OAuth state instead.
	Exempt []string
	Logger *slog.Logger
}

// CSRF implements double-submit cookie protection for HTML forms.
//
// Safe methods get a token cookie if they lack one, and the token is put in
// the request context so templates can render it into a hidden field.
// Unsafe methods must present the same token in the form field or header.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exempt := make(map[string]bool, len(cfg.Exempt))
	for _, e := range cfg.Exempt {
		exempt[e] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookieToken := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil {
				cookieToken = c.Value
			}

			if isSafeMethod(r.Method) {
				if cookieToken == "" {
					token, err := generateCSRFToken()
					if err != nil {
						logger.Error("generating csrf token", slog.String("error", err.Error()))
						http.Error(w, "internal server error", http.StatusInternalServerError)
						return
					}
					cookieToken = token
					http.SetCookie(w, &http.Cookie{
						Name:     CSRFCookieName,
						Value:    token,
						Path:     "/",
						MaxAge:   86400,
						HttpOnly: true,
						Secure:   cfg.CookieSecure,
						SameSite: http.SameSiteLaxMode,
					})
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, cookieToken)))
				return
			}

			if exempt[r.Method+" "+r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			sent := r.Header.Get(CSRFHeaderName)
			if sent == "" {
				sent = r.PostFormValue(CSRFFieldName)
			}

			if cookieToken == "" || sent == "" ||
				subtle.ConstantTimeCompare([]byte(cookieToken), []byte(sent)) != 1 {
				logger.Warn("csrf validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, cookieToken)))
		})
	}
}

// CSRFToken returns the token for the current request, or "" outside CSRF.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
