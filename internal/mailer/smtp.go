// Package mailer sends the password-reset e-mail over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when SMTP credentials are missing.
var ErrNotConfigured = errors.New("smtp credentials not configured")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	Timeout  time.Duration
}

// SMTPSender dials the SMTP server once per message.
type SMTPSender struct {
	cfg Config
	log *zap.Logger
}

func NewSMTPSender(cfg Config, log *zap.Logger) *SMTPSender {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.FromName == "" {
		cfg.FromName = "InnovaTube"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg, log: log.Named("mailer")}
}

// Configured reports whether credentials are present.
func (s *SMTPSender) Configured() bool {
	return s.cfg.Username != "" && s.cfg.Password != ""
}

// SendResetCode e-mails code to the given address.
func (s *SMTPSender) SendResetCode(ctx context.Context, email, code string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	msg, err := s.resetMessage(email, code)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Debug("reset code mail sent", zap.String("host", s.cfg.Host))
	return nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	// 465 is implicit TLS, anything else must upgrade with STARTTLS.
	if s.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

const resetSubject = "Your InnovaTube password reset code"

func (s *SMTPSender) resetMessage(email, code string) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.Username); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(email); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(resetSubject)

	body, err := ResetBody(code)
	if err != nil {
		return nil, err
	}
	m.SetBodyString(gomail.TypeTextHTML, body)
	m.AddAlternativeString(gomail.TypeTextPlain, fmt.Sprintf(
		"Your verification code is %s. It expires in 10 minutes. If you did not request this change, ignore this e-mail.", code))
	return m, nil
}

var resetTmpl = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; color: #111;">
  <h2>Reset your password</h2>
  <p>Your verification code is:</p>
  <div style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</div>
  <p>This code expires in 10 minutes.</p>
  <p>If you did not request this change, ignore this e-mail.</p>
</div>
`))

// ResetBody renders the HTML body of the reset e-mail.
func ResetBody(code string) (string, error) {
	var buf bytes.Buffer
	if err := resetTmpl.Execute(&buf, struct{ Code string }{code}); err != nil {
		return "", fmt.Errorf("render reset mail: %w", err)
	}
	return buf.String(), nil
}
