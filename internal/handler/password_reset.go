package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/innovatube/innovatube-api/internal/service"
)

// ResetHandler serves the three password-reset steps.
type ResetHandler struct {
	Reset *service.PasswordReset
}

func NewResetHandler(reset *service.PasswordReset) *ResetHandler {
	return &ResetHandler{Reset: reset}
}

type resetRequestReq struct {
	Email          string `json:"email"`
	BotToken       string `json:"botToken"`
	RecaptchaToken string `json:"recaptchaToken"`
}

type resetCodeReq struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (h *ResetHandler) Request(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ticket, err := h.Reset.RequestReset(ctx, service.ResetRequest{
		Email:    req.Email,
		BotToken: botToken(req.BotToken, req.RecaptchaToken),
		RemoteIP: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	var data any
	if ticket.DevCode != "" {
		data = echo.Map{"devCode": ticket.DevCode}
	}
	return ok(c, http.StatusOK, ticket.Message, data)
}

func (h *ResetHandler) Verify(c echo.Context) error {
	var req resetCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	valid, err := h.Reset.VerifyCode(ctx, req.Email, req.Code)
	if err != nil {
		return writeError(c, err)
	}
	if !valid {
		return fail(c, http.StatusBadRequest, msgInvalidCode)
	}
	return ok(c, http.StatusOK, "code is valid", echo.Map{"valid": true})
}

func (h *ResetHandler) Confirm(c echo.Context) error {
	var req resetCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Reset.ResetPassword(ctx, req.Email, req.Code, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	return ok(c, http.StatusOK, "password updated, please sign in again", nil)
}
