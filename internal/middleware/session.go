package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionResolver maps a raw bearer token to the user it belongs to.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (uint64, error)
}

// SessionAuth rejects requests without a live session with 401.  Only errors
// for which invalid reports true count as a dead session; any other resolver
// error goes to the HTTP error handler.  On success the user id and raw token
// are available through UserID and SessionToken.
func SessionAuth(resolver SessionResolver, invalid func(error) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c, "authentication required")
			}
			uid, err := resolver.ResolveSession(c.Request().Context(), raw)
			if err != nil {
				if invalid(err) {
					return unauthorized(c, "invalid or expired session")
				}
				return err
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxSessionToken, raw)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": msg})
}
