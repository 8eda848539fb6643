package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innovatube/innovatube-api/internal/model"
	"github.com/innovatube/innovatube-api/internal/utils"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Message: msg})
}

type userPart struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func summary(u model.User) userPart {
	return userPart{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
	}
}

type authData struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userPart  `json:"user"`
}

func newAuthData(tok utils.SessionToken, u model.User) authData {
	return authData{Token: tok.Raw, ExpiresAt: tok.Exp, User: summary(u)}
}
