package middleware

import "github.com/labstack/echo/v4"

const (
	ctxUserID       = "user_id"
	ctxSessionToken = "session_token"
)

// UserID returns the authenticated user id set by SessionAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// SessionToken returns the raw bearer token set by SessionAuth.
func SessionToken(c echo.Context) string {
	s, _ := c.Get(ctxSessionToken).(string)
	return s
}
