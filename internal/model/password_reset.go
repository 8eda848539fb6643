package model

import "time"

// PasswordReset models a row in `password_resets`.  A record starts
// pending, becomes used exactly once when a password change is committed,
// and is implicitly expired once ExpiresAt has passed.  Several pending
// records may exist for the same email.
type PasswordReset struct {
	ID        uint64    // password_resets.id
	Email     string    // password_resets.email (normalized)
	CodeHash  string    // password_resets.code_hash (SHA-256 hex of the 6-digit code)
	ExpiresAt time.Time // password_resets.expires_at
	Used      bool      // password_resets.used
	CreatedAt time.Time // password_resets.created_at
}

// Expired reports whether the code can no longer be redeemed at now.  The
// boundary instant itself is still valid.
func (p PasswordReset) Expired(now time.Time) bool { return now.After(p.ExpiresAt) }

// Redeemable reports whether the record can satisfy a verify or confirm
// request at now.
func (p PasswordReset) Redeemable(now time.Time) bool { return !p.Used && !p.Expired(now) }
