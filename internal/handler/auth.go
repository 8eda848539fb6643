package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innovatube/innovatube-api/internal/middleware"
	"github.com/innovatube/innovatube-api/internal/service"
)

const requestTimeout = 5 * time.Second

// AuthHandler serves register, login, logout and me.
type AuthHandler struct {
	Auth *service.Auth
}

func NewAuthHandler(auth *service.Auth) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type registerReq struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	BotToken       string `json:"botToken"`
	RecaptchaToken string `json:"recaptchaToken"`
}

type loginReq struct {
	Login          string `json:"login"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	BotToken       string `json:"botToken"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func botToken(primary, legacy string) string {
	if primary != "" {
		return primary
	}
	return legacy
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.Registration{
		NewUser: service.NewUser{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
		},
		BotToken: botToken(req.BotToken, req.RecaptchaToken),
		RemoteIP: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusCreated, "user registered", newAuthData(res.Token, res.User))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	identifier := req.Login
	if identifier == "" {
		identifier = req.Email
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, service.Login{
		Identifier: identifier,
		Password:   req.Password,
		BotToken:   botToken(req.BotToken, req.RecaptchaToken),
		RemoteIP:   c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "login successful", newAuthData(res.Token, res.User))
}

// Logout revokes the session the request was authenticated with.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Auth.Logout(ctx, middleware.SessionToken(c)); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) Me(c echo.Context) error {
	uid, authed := middleware.UserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, msgUnauthorized)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.CurrentUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "profile", echo.Map{"user": summary(u)})
}
