// Package services contains application services for the tradeclub client.
// This file defines the authentication service: login and signup against the
// auth API, logout, and profile edits of the active session.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tradeclub/internal/client/api"
	"github.com/dmitrijs2005/tradeclub/internal/client/models"
	"github.com/dmitrijs2005/tradeclub/internal/logging"
)

var ErrNotSignedIn = errors.New("not signed in")

// Session is the part of session.Synchronizer the service drives.
type Session interface {
	LoginSuccess(ctx context.Context, user models.User) error
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error
	Current() *models.User
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login/Signup: authenticate against the API and start a session in
//     this tab; other tabs pick it up through the shared store.
//   - Logout: revoke the token remotely when possible and always end the
//     local session.
//   - UpdateProfile: edit the active session; fails with ErrNotSignedIn
//     when there is none.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Signup(ctx context.Context, req api.SignupRequest) (*models.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error)
	Current() *models.User
}

type authService struct {
	client  api.Client
	session Session
	logger  logging.Logger
}

func NewAuthService(client api.Client, session Session, logger logging.Logger) AuthService {
	return &authService{client: client, session: session, logger: logger.With("module", "auth")}
}

func (a *authService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	resp, err := a.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.start(ctx, resp)
}

func (a *authService) Signup(ctx context.Context, req api.SignupRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return nil, errors.New("name, email and password are required")
	}

	resp, err := a.client.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.start(ctx, resp)
}

// start records a successful authentication. A persistence failure is
// returned, but the session is active in this tab regardless.
func (a *authService) start(ctx context.Context, resp *api.AuthResponse) (*models.User, error) {
	user := resp.User()
	if err := a.session.LoginSuccess(ctx, user); err != nil {
		return &user, fmt.Errorf("session not shared with other tabs: %w", err)
	}
	return &user, nil
}

func (a *authService) Logout(ctx context.Context) error {
	if u := a.session.Current(); u != nil && u.Token != "" {
		if err := a.client.Logout(ctx, u.Token); err != nil {
			a.logger.Warn(ctx, "remote logout failed, ending local session anyway", "error", err)
		}
	}
	return a.session.Logout(ctx)
}

func (a *authService) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	if a.session.Current() == nil {
		return nil, ErrNotSignedIn
	}
	if upd.IsEmpty() {
		return a.session.Current(), nil
	}
	if err := a.session.UpdateProfile(ctx, upd); err != nil {
		return a.session.Current(), err
	}
	return a.session.Current(), nil
}

func (a *authService) Current() *models.User {
	return a.session.Current()
}
