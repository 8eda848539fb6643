package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports liveness along with the running environment.
func Health(env string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"success":     true,
			"message":     "InnovaTube API is running",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": env,
		})
	}
}

// Index lists the top-level endpoints.
func Index(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Welcome to the InnovaTube API",
		"version": "1.0.0",
		"endpoints": echo.Map{
			"auth":   "/auth",
			"health": "/health",
		},
	})
}
