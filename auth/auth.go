// Package auth signs users in and out of the backend and keeps the credential
// store in step with the session the backend issues.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lde-admin/lde-cli/apiclient"
	"github.com/lde-admin/lde-cli/endpoint"
	"github.com/lde-admin/lde-cli/store"
	"github.com/lde-admin/lde-cli/validation"
)

var (
	// ErrNoSession is returned when the store holds no complete credential record.
	ErrNoSession = errors.New("no session data found")

	// ErrConfirmationPending means the account was created but the backend
	// issued no session, usually because the email address must be confirmed.
	ErrConfirmationPending = errors.New("account created, confirmation pending")

	// ErrPersist wraps store failures after the backend issued a session.
	ErrPersist = errors.New("failed to save credentials")

	// ErrRemoteLogout means the local session was cleared but the backend
	// could not be told.
	ErrRemoteLogout = errors.New("remote logout failed")
)

// Credentials identify a user on login and registration.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// User is the account record returned by the auth endpoints.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	// Raw keeps every field the backend sent.
	Raw json.RawMessage `json:"-"`
}

// Service runs the session operations over a shared client and store.
type Service struct {
	client *apiclient.Client
	store  store.Store
	log    zerolog.Logger
}

// NewService returns a Service. The store must be the one c was built with.
func NewService(c *apiclient.Client, s store.Store, log zerolog.Logger) *Service {
	return &Service{client: c, store: s, log: log}
}

// Login exchanges email and password for a session and persists it.
func (s *Service) Login(ctx context.Context, creds Credentials) (*store.Credentials, error) {
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}

	session, err := s.issue(ctx, endpoint.AuthLogin, creds)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("login response carried no session")
	}

	s.log.Info().Str("email", creds.Email).Msg("logged in")
	return session, nil
}

// Register creates an account. When the backend confirms the account
// immediately the returned session is persisted; otherwise
// ErrConfirmationPending is returned and the store is left untouched.
func (s *Service) Register(ctx context.Context, creds Credentials) (*store.Credentials, error) {
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}

	session, err := s.issue(ctx, endpoint.AuthSignup, creds)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.log.Info().Str("email", creds.Email).Msg("registered, awaiting confirmation")
		return nil, ErrConfirmationPending
	}

	s.log.Info().Str("email", creds.Email).Msg("registered")
	return session, nil
}

// Refresh renews the stored session explicitly and saves the full record the
// backend returns, user included.
func (s *Service) Refresh(ctx context.Context) (*store.Credentials, error) {
	refreshToken, ok := s.store.Get(store.KeyRefreshToken)
	if !ok || refreshToken == "" {
		return nil, ErrNoSession
	}

	session, err := s.issue(ctx, endpoint.AuthRefresh, map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("refresh response carried no session")
	}
	return session, nil
}

// Logout clears the store first and then revokes the session remotely. The
// local clear stands even when the backend call fails.
func (s *Service) Logout(ctx context.Context) error {
	accessToken, _ := s.store.Get(store.KeyAccessToken)

	if err := store.ClearCredentials(s.store); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if accessToken == "" {
		return nil
	}

	_, err := s.client.Do(ctx, endpoint.AuthLogout, apiclient.Request{
		Header: apiclient.BearerHeader(accessToken),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("remote logout failed, local session already cleared")
		return fmt.Errorf("%w: %w", ErrRemoteLogout, err)
	}
	return nil
}

// Session fetches the current user for the stored session. The call goes
// through the refresh rule, so an expired access token is renewed on the way.
func (s *Service) Session(ctx context.Context) (*User, error) {
	if _, ok := store.LoadCredentials(s.store); !ok {
		return nil, ErrNoSession
	}

	resp, err := s.client.Do(ctx, endpoint.AuthUser, apiclient.Request{})
	if err != nil {
		return nil, err
	}

	var u User
	if err := resp.Decode(&u); err != nil {
		return nil, err
	}
	u.Raw = resp.Body
	return &u, nil
}

// issue posts body to an auth endpoint as the anonymous client and persists
// the session in the response, if any.
func (s *Service) issue(ctx context.Context, key endpoint.Key, body any) (*store.Credentials, error) {
	resp, err := s.client.Do(ctx, key, apiclient.Request{
		Body:   body,
		Header: s.client.AnonymousHeader(),
	})
	if err != nil {
		return nil, err
	}

	var session store.Credentials
	if err := resp.Decode(&session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, nil
	}

	if err := store.SaveCredentials(s.store, &session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return &session, nil
}
