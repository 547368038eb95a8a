package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
)

// AuthService turns a provider sign-in into a local user and session.
//
//	AuthHandler (HTTP) → AuthService → Provider (Google)
//	                                 → UserRepository (identity resolution)
//	                                 → SessionRepository + TokenService (cookie)
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *auth.TokenService
	provider auth.Provider
	events   EventRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	provider auth.Provider,
	events EventRecorder,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		provider: provider,
		events:   recorderOrNop(events),
		logger:   logger,
		now:      time.Now,
	}
}

// AuthResult bundles what the handler needs to finish a sign-in: the user for
// the flash message, and the signed token for the cookie.
type AuthResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// LoginURL returns the provider URL the login page links to.
func (s *AuthService) LoginURL(state string) string {
	return s.provider.AuthURL(state)
}

// LoginWithCode completes the redirect flow: exchange the authorization code,
// then sign in with the resulting token.
func (s *AuthService) LoginWithCode(ctx context.Context, code string) (*AuthResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "missing authorization code")
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream("Failed to upgrade the authorization code.", err)
	}
	return s.login(ctx, token)
}

// LoginWithAccessToken completes the token hand-off flow, where the browser
// already holds a provider access token and posts it to us.
func (s *AuthService) LoginWithAccessToken(ctx context.Context, accessToken string) (*AuthResult, error) {
	if accessToken == "" {
		return nil, apperror.ValidationFailed("access_token", "missing access token")
	}
	return s.login(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

func (s *AuthService) login(ctx context.Context, token *oauth2.Token) (*AuthResult, error) {
	// A provider failure is reported as such. It must never fall through to
	// creating or picking a user.
	who, err := s.provider.UserInfo(ctx, token)
	if err != nil {
		return nil, apperror.Upstream("Failed to fetch your identity from the provider.", err)
	}

	user, err := s.ResolveUser(ctx, who.Email, who.Name)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &model.Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		AccessToken: token.AccessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.tokens.TTL()),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: creating session for %s: %w", user.ID, err)
	}

	signed, err := s.tokens.Generate(session.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: signing session for %s: %w", user.ID, err)
	}

	s.events.RecordEvent(EventLogin)
	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Session: session, Token: signed}, nil
}

// ResolveUser maps an asserted email onto the internal user, creating the row
// on first sight. Storage failures propagate; they are never read as "new user".
func (s *AuthService) ResolveUser(ctx context.Context, email, name string) (*model.User, error) {
	user, err := s.users.ResolveByEmail(ctx, email, name)
	if err != nil {
		return nil, fmt.Errorf("service/auth: resolving user %s: %w", email, err)
	}
	return user, nil
}

// Logout revokes the provider token and ends the session.
//
// The local session is deleted even when revocation fails, so the browser is
// signed out either way; the revocation failure is still returned so the user
// learns the provider grant may be live.
func (s *AuthService) Logout(ctx context.Context, session *model.Session) error {
	if session == nil {
		return apperror.Unauthorized("Current user not connected.")
	}

	var revokeErr error
	if session.AccessToken != "" {
		revokeErr = s.provider.Revoke(ctx, session.AccessToken)
	}

	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return errors.Join(
			fmt.Errorf("service/auth: deleting session: %w", err),
			revokeErr,
		)
	}

	s.events.RecordEvent(EventLogout)

	if revokeErr != nil {
		s.logger.Warn("token revocation failed",
			slog.String("userID", session.UserID),
			slog.String("error", revokeErr.Error()),
		)
		return apperror.Upstream("Failed to revoke token for given user.", revokeErr)
	}

	s.logger.Info("user signed out", slog.String("userID", session.UserID))
	return nil
}

// CurrentUser returns the user record behind a session.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("not signed in")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// SweepSessions deletes expired session rows. The server runs it periodically.
func (s *AuthService) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/auth: sweeping sessions: %w", err)
	}
	return n, nil
}
