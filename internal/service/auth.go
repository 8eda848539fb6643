package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/innovatube/innovatube-api/internal/model"
	"github.com/innovatube/innovatube-api/internal/repository"
	"github.com/innovatube/innovatube-api/internal/utils"
)

// BotGate verifies an opaque client-supplied challenge token.  It must
// return false on any doubt.
type BotGate interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Registration is the input of Auth.Register.
type Registration struct {
	NewUser
	BotToken string
	RemoteIP string
}

// Login is the input of Auth.Login.  Identifier is an email or a username.
type Login struct {
	Identifier string
	Password   string
	BotToken   string
	RemoteIP   string
}

// AuthResult is returned by a successful registration or login.
type AuthResult struct {
	Token utils.SessionToken
	User  model.User
}

// Auth orchestrates registration, login and logout.
type Auth struct {
	creds    *Credentials
	sessions *Sessions
	gate     BotGate
	log      *zap.Logger
}

func NewAuth(creds *Credentials, sessions *Sessions, gate BotGate, log *zap.Logger) *Auth {
	return &Auth{creds: creds, sessions: sessions, gate: gate, log: log}
}

// Register checks the bot token, creates the user and opens its first
// session.
func (a *Auth) Register(ctx context.Context, in Registration) (AuthResult, error) {
	if !a.gate.Verify(ctx, in.BotToken, in.RemoteIP) {
		return AuthResult{}, ErrBotCheckFailed
	}
	u, err := a.creds.Create(ctx, in.NewUser)
	if err != nil {
		return AuthResult{}, err
	}
	tok, err := a.sessions.CreateSession(ctx, u.ID)
	if err != nil {
		return AuthResult{}, err
	}
	a.log.Info("user registered", zap.Uint64("user_id", u.ID))
	return AuthResult{Token: tok, User: u}, nil
}

// Login authenticates by email or username and replaces every previous
// session of the user with a new one.
func (a *Auth) Login(ctx context.Context, in Login) (AuthResult, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if in.Identifier == "" || in.Password == "" {
		return AuthResult{}, invalid("login", "email/username and password are required")
	}
	if !a.gate.Verify(ctx, in.BotToken, in.RemoteIP) {
		return AuthResult{}, ErrBotCheckFailed
	}

	u, err := a.creds.FindByIdentifier(ctx, in.Identifier)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(in.Password)
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}
	if !a.creds.VerifyPassword(u, in.Password) || !u.IsActive {
		return AuthResult{}, ErrInvalidCredentials
	}

	tok, err := a.sessions.ReplaceSessions(ctx, u.ID)
	if err != nil {
		return AuthResult{}, err
	}
	a.log.Info("user logged in", zap.Uint64("user_id", u.ID))
	return AuthResult{Token: tok, User: u}, nil
}

// Logout revokes the presented token.  It is idempotent.
func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.sessions.RevokeSession(ctx, token)
}

// CurrentUser loads the user behind a resolved session.  Deactivated or
// vanished users are reported as ErrInvalidSession.
func (a *Auth) CurrentUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := a.creds.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrInvalidSession
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return model.User{}, ErrInvalidSession
	}
	return u, nil
}

// ResolveSession returns the user behind token for the request middleware.
// Sessions of deactivated or vanished users resolve to ErrInvalidSession.
func (a *Auth) ResolveSession(ctx context.Context, token string) (uint64, error) {
	uid, err := a.sessions.ResolveSession(ctx, token)
	if err != nil {
		return 0, err
	}
	if _, err := a.CurrentUser(ctx, uid); err != nil {
		return 0, err
	}
	return uid, nil
}
