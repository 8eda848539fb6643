package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/innovatube/innovatube-api/internal/model"
	"github.com/innovatube/innovatube-api/internal/repository"
	"github.com/innovatube/innovatube-api/internal/utils"
)

// SessionStore persists sessions by token hash.  Replace must delete every
// session of the user and insert the new one atomically.
type SessionStore interface {
	Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Find(ctx context.Context, tokenHash string) (model.Session, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID uint64) error
}

// Sessions issues, resolves and revokes bearer tokens.  A token is valid
// only while its signature and expiry check out and its row exists.
type Sessions struct {
	store  SessionStore
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(store SessionStore, secret string, ttl time.Duration) *Sessions {
	return &Sessions{store: store, secret: secret, ttl: ttl, now: nowUTC}
}

func (s *Sessions) issue(userID uint64) (utils.SessionToken, error) {
	tok, err := utils.NewSessionToken(s.secret, userID, s.ttl, s.now())
	if err != nil {
		return utils.SessionToken{}, fmt.Errorf("issue session token: %w", err)
	}
	return tok, nil
}

// CreateSession adds a session for userID without touching existing ones.
// Used on registration, where no prior session can exist.
func (s *Sessions) CreateSession(ctx context.Context, userID uint64) (utils.SessionToken, error) {
	tok, err := s.issue(userID)
	if err != nil {
		return utils.SessionToken{}, err
	}
	if err := s.store.Create(ctx, userID, utils.HashToken(tok.Raw), tok.Exp); err != nil {
		return utils.SessionToken{}, fmt.Errorf("store session: %w", err)
	}
	return tok, nil
}

// ReplaceSessions revokes every session of userID and creates a new one in
// one atomic step, leaving exactly one live session.
func (s *Sessions) ReplaceSessions(ctx context.Context, userID uint64) (utils.SessionToken, error) {
	tok, err := s.issue(userID)
	if err != nil {
		return utils.SessionToken{}, err
	}
	if err := s.store.Replace(ctx, userID, utils.HashToken(tok.Raw), tok.Exp); err != nil {
		return utils.SessionToken{}, fmt.Errorf("replace sessions: %w", err)
	}
	return tok, nil
}

// ResolveSession returns the user id behind raw, or ErrInvalidSession.
func (s *Sessions) ResolveSession(ctx context.Context, raw string) (uint64, error) {
	now := s.now()
	uid, err := utils.ParseSessionToken(s.secret, raw, now)
	if err != nil {
		return 0, ErrInvalidSession
	}
	sess, err := s.store.Find(ctx, utils.HashToken(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrInvalidSession
	}
	if err != nil {
		return 0, fmt.Errorf("find session: %w", err)
	}
	if sess.UserID != uid || sess.Expired(now) {
		return 0, ErrInvalidSession
	}
	return uid, nil
}

// RevokeSession deletes the session for raw.  Unknown tokens are a no-op.
func (s *Sessions) RevokeSession(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return s.store.DeleteByHash(ctx, utils.HashToken(raw))
}

// RevokeAllSessions deletes every session belonging to userID.
func (s *Sessions) RevokeAllSessions(ctx context.Context, userID uint64) error {
	return s.store.DeleteAllForUser(ctx, userID)
}
