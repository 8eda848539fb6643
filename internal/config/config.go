// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets that are optional (bot verification,
// SMTP) degrade the related feature instead of stopping the process.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	SessionSecret string        // HMAC secret used to sign session tokens
	SessionTTL    time.Duration // lifetime of a session token
	BcryptCost    int           // bcrypt cost for password hashing
	FrontendURL   string        // extra CORS origin (optional)
	LogLevel      string        // zap level name
	Captcha       CaptchaConfig
	Mail          MailConfig
}

// CaptchaConfig configures the bot-verification provider.  An empty Secret
// means "not configured": development lets requests through, production
// rejects them.
type CaptchaConfig struct {
	Secret    string
	VerifyURL string
	Timeout   time.Duration
}

// MailConfig configures reset-code delivery.  When AMQPURL is set, codes are
// handed to RabbitMQ and delivered by the consumer; otherwise they are sent
// over SMTP directly.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string
	Timeout      time.Duration
	AMQPURL      string
	Queue        string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		SessionSecret: must("SESSION_SECRET"),
		SessionTTL:    time.Duration(envInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		BcryptCost:    envInt("BCRYPT_COST", 10),
		FrontendURL:   os.Getenv("FRONTEND_URL"),
		LogLevel:      envStr("LOG_LEVEL", ""),
		Captcha: CaptchaConfig{
			Secret:    os.Getenv("RECAPTCHA_SECRET_KEY"),
			VerifyURL: envStr("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			Timeout:   envDur("CAPTCHA_TIMEOUT", 5*time.Second),
		},
		Mail: MailConfig{
			SMTPHost:     envStr("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     envInt("SMTP_PORT", 465),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			FromName:     envStr("MAIL_FROM_NAME", "InnovaTube"),
			Timeout:      envDur("MAIL_TIMEOUT", 10*time.Second),
			AMQPURL:      envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
			Queue:        envStr("MAIL_QUEUE", "auth.password_reset"),
		},
	}
}

// IsProduction reports whether production-only behavior applies: the bot
// gate fails closed, reset codes are never echoed and error details are
// hidden.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
