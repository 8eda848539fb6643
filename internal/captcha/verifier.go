// Package captcha verifies bot-check tokens against a reCAPTCHA-compatible
// siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type Config struct {
	Secret     string
	VerifyURL  string
	Production bool
	Timeout    time.Duration
}

// Verifier answers whether a client token proves a human.  Every failure
// path answers false except a missing secret outside production.
type Verifier struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func NewVerifier(cfg Config, log *zap.Logger) *Verifier {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Verifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: log.Named("captcha")}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if v.cfg.Secret == "" {
		if v.cfg.Production {
			v.log.Error("captcha secret not configured, rejecting")
			return false
		}
		v.log.Warn("captcha secret not configured, skipping verification")
		return true
	}

	ok, err := v.siteverify(ctx, token, remoteIP)
	if err != nil {
		v.log.Warn("captcha verification failed", zap.Error(err))
		return false
	}
	return ok
}

func (v *Verifier) siteverify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{"secret": {v.cfg.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("post siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("siteverify status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode siteverify: %w", err)
	}
	if !out.Success {
		v.log.Debug("captcha rejected by provider", zap.Strings("error_codes", out.ErrorCodes))
	}
	return out.Success, nil
}
