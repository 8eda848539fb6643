package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/innovatube/innovatube-api/internal/model"
	"github.com/innovatube/innovatube-api/internal/repository"
	"github.com/innovatube/innovatube-api/internal/utils"
)

// ResetCodeTTL is how long a reset code stays redeemable.
const ResetCodeTTL = 10 * time.Minute

// GenericResetMessage is returned for every accepted reset request,
// whether or not the account exists.
const GenericResetMessage = "If the email is registered, you will receive a verification code shortly"

// ResetStore persists reset codes by (email, code hash).
type ResetStore interface {
	Create(ctx context.Context, email, codeHash string, exp time.Time) (uint64, error)
	FindPending(ctx context.Context, email, codeHash string) (model.PasswordReset, error)
	// Consume marks the record used, stores the new password hash and
	// revokes all sessions of the user atomically.  repository.ErrNotFound
	// means the record was already used.
	Consume(ctx context.Context, resetID, userID uint64, passwordHash string) error
}

// Notifier delivers a reset code to an email address.
type Notifier interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// ResetRequest is the input of PasswordReset.RequestReset.
type ResetRequest struct {
	Email    string
	BotToken string
	RemoteIP string
}

// ResetTicket is what RequestReset hands back to the caller.  DevCode is
// only ever set outside production.
type ResetTicket struct {
	Message string
	DevCode string
}

// PasswordReset runs the two-step code flow: request a code by email,
// then redeem it together with a new password.
type PasswordReset struct {
	creds       *Credentials
	store       ResetStore
	gate        BotGate
	notifier    Notifier
	log         *zap.Logger
	production  bool
	mailTimeout time.Duration
	now         func() time.Time

	inflight sync.WaitGroup
}

// ResetOptions carries the environment-dependent knobs of PasswordReset.
type ResetOptions struct {
	Production  bool
	MailTimeout time.Duration
}

func NewPasswordReset(creds *Credentials, store ResetStore, gate BotGate, notifier Notifier, log *zap.Logger, opts ResetOptions) *PasswordReset {
	if opts.MailTimeout <= 0 {
		opts.MailTimeout = 10 * time.Second
	}
	return &PasswordReset{
		creds:       creds,
		store:       store,
		gate:        gate,
		notifier:    notifier,
		log:         log,
		production:  opts.Production,
		mailTimeout: opts.MailTimeout,
		now:         nowUTC,
	}
}

// RequestReset issues a code for the account behind req.Email, if any.
// The returned message is the same whether the account exists, is
// inactive, or the mail could not be delivered.
func (p *PasswordReset) RequestReset(ctx context.Context, req ResetRequest) (ResetTicket, error) {
	email := NormalizeEmail(req.Email)
	if email == "" {
		return ResetTicket{}, invalid("email", "email is required")
	}
	if !p.gate.Verify(ctx, req.BotToken, req.RemoteIP) {
		return ResetTicket{}, ErrBotCheckFailed
	}

	ticket := ResetTicket{Message: GenericResetMessage}

	u, err := p.creds.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		p.log.Debug("password reset requested for unknown or inactive account")
		return ticket, nil
	}
	if err != nil {
		return ResetTicket{}, fmt.Errorf("find user: %w", err)
	}

	code, err := utils.NewResetCode()
	if err != nil {
		return ResetTicket{}, fmt.Errorf("generate code: %w", err)
	}
	expires := p.now().Add(ResetCodeTTL)
	if _, err := p.store.Create(ctx, email, utils.HashToken(code), expires); err != nil {
		return ResetTicket{}, fmt.Errorf("store reset code: %w", err)
	}

	p.deliver(email, code, u.ID)

	if !p.production {
		ticket.DevCode = code
	}
	return ticket, nil
}

// deliver hands the code to the notifier in the background.  Failures are
// logged only: surfacing them would reveal that the account exists.
func (p *PasswordReset) deliver(email, code string, userID uint64) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.mailTimeout)
		defer cancel()
		if err := p.notifier.SendResetCode(ctx, email, code); err != nil {
			p.log.Warn("reset code delivery failed", zap.Uint64("user_id", userID), zap.Error(err))
			return
		}
		p.log.Info("reset code handed off for delivery", zap.Uint64("user_id", userID))
	}()
}

// Wait blocks until every background delivery started so far has finished.
func (p *PasswordReset) Wait() { p.inflight.Wait() }

// lookup finds a redeemable record for (email, code).  All failure modes
// collapse into ErrInvalidResetCode.
func (p *PasswordReset) lookup(ctx context.Context, email, code string) (model.PasswordReset, error) {
	code = strings.TrimSpace(code)
	if !utils.IsResetCode(code) {
		return model.PasswordReset{}, ErrInvalidResetCode
	}
	rec, err := p.store.FindPending(ctx, email, utils.HashToken(code))
	if errors.Is(err, repository.ErrNotFound) {
		return model.PasswordReset{}, ErrInvalidResetCode
	}
	if err != nil {
		return model.PasswordReset{}, fmt.Errorf("find reset code: %w", err)
	}
	if !rec.Redeemable(p.now()) {
		return model.PasswordReset{}, ErrInvalidResetCode
	}
	return rec, nil
}

// VerifyCode reports whether (email, code) is currently redeemable.  It
// changes nothing and may be repeated freely.
func (p *PasswordReset) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return false, invalid("code", "email and code are required")
	}
	if _, err := p.lookup(ctx, email, code); err != nil {
		if errors.Is(err, ErrInvalidResetCode) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResetPassword redeems (email, code) for a new password.  On success the
// code becomes used and every session of the user is revoked.
func (p *PasswordReset) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return invalid("code", "email and code are required")
	}
	hash, err := p.creds.HashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}

	rec, err := p.lookup(ctx, email, code)
	if err != nil {
		return err
	}
	u, err := p.creds.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidResetCode
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	if err := p.store.Consume(ctx, rec.ID, u.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("consume reset code: %w", err)
	}
	p.log.Info("password reset completed", zap.Uint64("user_id", u.ID))
	return nil
}
