// Package utils holds password, session token and reset code helpers.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails signature, expiry or
// shape checks.  Callers should not distinguish between the causes.
var ErrInvalidToken = errors.New("invalid session token")

// SessionToken is a bearer token handed to the client together with its
// expiry.  Raw is the full string the client sends back in the
// Authorization header; only HashToken(Raw) is persisted.
type SessionToken struct {
	Raw string    // serialized HS256 JWT
	Exp time.Time // UTC expiration time
}

// NewSessionToken signs an HS256 JWT carrying the user id (sub), a random
// 256-bit identifier (jti) and the expiry.  The jti makes every token
// unique even when two are issued for the same user in the same second.
func NewSessionToken(secret string, userID uint64, ttl time.Duration, now time.Time) (SessionToken, error) {
	jti, err := randomHex(32)
	if err != nil {
		return SessionToken{}, err
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Raw: signed, Exp: exp}, nil
}

// ParseSessionToken verifies the signature and expiry of raw as of now and
// returns the user id it was issued for.  A valid signature is necessary
// but not sufficient: the caller must still find the stored session.
func ParseSessionToken(secret, raw string, now time.Time) (uint64, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !tok.Valid || claims.ID == "" {
		return 0, ErrInvalidToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return 0, ErrInvalidToken
	}
	return uid, nil
}

// HashToken returns the SHA‑256 hash of a raw secret as a hex string.
// Storing only the hash means a leaked table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
