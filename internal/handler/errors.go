package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/innovatube/innovatube-api/internal/service"
)

const (
	msgBotCheck       = "bot verification failed"
	msgBadCredentials = "invalid credentials"
	msgInvalidCode    = "invalid or expired code"
	msgUnauthorized   = "invalid or expired session"
	msgInternal       = "internal server error"
)

// writeError turns a service error into a response.  Anything it does not
// recognise is passed on to the echo error handler as a 500.
func writeError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return fail(c, http.StatusBadRequest, ve.Message)
	case errors.Is(err, service.ErrBotCheckFailed):
		return fail(c, http.StatusBadRequest, msgBotCheck)
	case errors.Is(err, service.ErrEmailTaken):
		return fail(c, http.StatusBadRequest, "email is already registered")
	case errors.Is(err, service.ErrUsernameTaken):
		return fail(c, http.StatusBadRequest, "username is already taken")
	case errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, service.ErrInvalidResetCode):
		return fail(c, http.StatusBadRequest, msgInvalidCode)
	case errors.Is(err, service.ErrInvalidSession):
		return fail(c, http.StatusUnauthorized, msgUnauthorized)
	}
	return err
}

// ErrorHandler replaces echo's default so that every error, including
// recovered panics and unknown routes, leaves in the JSON envelope.
func ErrorHandler(log *zap.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := msgInternal
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			switch status {
			case http.StatusNotFound:
				msg = "route not found"
			case http.StatusMethodNotAllowed:
				msg = "method not allowed"
			case http.StatusRequestEntityTooLarge:
				msg = "request body too large"
			default:
				if m, ok := he.Message.(string); ok && status < 500 {
					msg = m
				}
			}
		}

		body := envelope{Success: false, Message: msg}
		if status >= 500 {
			log.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err),
			)
			if !production {
				body.Error = err.Error()
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}
