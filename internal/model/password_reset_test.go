package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPasswordReset_Redeemable(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := PasswordReset{ExpiresAt: created.Add(10 * time.Minute)}

	assert.True(t, rec.Redeemable(created))
	assert.True(t, rec.Redeemable(rec.ExpiresAt), "boundary instant is still valid")
	assert.False(t, rec.Redeemable(rec.ExpiresAt.Add(time.Nanosecond)))

	rec.Used = true
	assert.False(t, rec.Redeemable(created), "used is terminal even before expiry")
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}
