package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/innovatube/innovatube-api/internal/model"
)

// ResetRepo stores password-reset codes.  Codes are looked up by
// (email, code_hash) and never deleted; used/expired rows simply stop
// matching.
type ResetRepo struct{ DB *sql.DB }

func NewResetRepo(db *sql.DB) *ResetRepo { return &ResetRepo{DB: db} }

// Create inserts a pending reset record and returns its id.
func (r *ResetRepo) Create(ctx context.Context, email, codeHash string, exp time.Time) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_resets (email, code_hash, expires_at) VALUES (?,?,?)",
		email, codeHash, exp.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindPending returns the newest unused record for email and codeHash,
// expired or not.  ErrNotFound when none exists.
func (r *ResetRepo) FindPending(ctx context.Context, email, codeHash string) (model.PasswordReset, error) {
	var p model.PasswordReset
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, code_hash, expires_at, used, created_at
		   FROM password_resets
		  WHERE email=? AND code_hash=? AND used=0
		  ORDER BY id DESC LIMIT 1`,
		email, codeHash).Scan(&p.ID, &p.Email, &p.CodeHash, &p.ExpiresAt, &p.Used, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PasswordReset{}, ErrNotFound
	}
	return p, err
}

// Consume commits a password change: it marks the reset record used, sets
// the user's new password hash and deletes all of the user's sessions, all
// in one transaction.  If the record was already used (e.g. by a concurrent
// confirm) nothing changes and ErrNotFound is returned.
func (r *ResetRepo) Consume(ctx context.Context, resetID, userID uint64, passwordHash string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "UPDATE password_resets SET used=1 WHERE id=? AND used=0", resetID)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=?",
		passwordHash, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM sessions WHERE user_id=?", userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return tx.Commit()
}
