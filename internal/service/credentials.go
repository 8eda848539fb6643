package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/innovatube/innovatube-api/internal/model"
	"github.com/innovatube/innovatube-api/internal/repository"
	"github.com/innovatube/innovatube-api/internal/utils"
)

// MinPasswordLength applies to registration and reset alike.
const MinPasswordLength = 8

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)
)

// UserStore is the persistence the credential store needs.  Lookups return
// repository.ErrNotFound when nothing matches.
type UserStore interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	FindConflicts(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, hash string) error
}

// NewUser is the registration input.
type NewUser struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// Credentials owns user identity and password hashes.
type Credentials struct {
	users UserStore
	cost  int
}

func NewCredentials(users UserStore, bcryptCost int) *Credentials {
	return &Credentials{users: users, cost: bcryptCost}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// IsEmail reports whether s has the shape of an email address.
func IsEmail(s string) bool { return emailPattern.MatchString(s) }

// ValidatePassword enforces the server-side password policy.
func ValidatePassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return invalid(field, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return invalid(field, fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func (in *NewUser) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
}

func (in NewUser) validate() error {
	switch {
	case in.FirstName == "":
		return invalid("firstName", "first name is required")
	case in.LastName == "":
		return invalid("lastName", "last name is required")
	case in.Username == "":
		return invalid("username", "username is required")
	case !usernamePattern.MatchString(in.Username):
		return invalid("username", "username must be 3-30 letters, digits, '.', '_' or '-'")
	case in.Email == "":
		return invalid("email", "email is required")
	case !IsEmail(in.Email):
		return invalid("email", "email is not valid")
	}
	return ValidatePassword("password", in.Password)
}

// Create registers a new user.  The email is stored lowercased.  Only the
// bcrypt hash of the password is persisted.
func (c *Credentials) Create(ctx context.Context, in NewUser) (model.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return model.User{}, err
	}

	emailTaken, usernameTaken, err := c.users.FindConflicts(ctx, in.Email, in.Username)
	if err != nil {
		return model.User{}, fmt.Errorf("check conflicts: %w", err)
	}
	if emailTaken {
		return model.User{}, ErrEmailTaken
	}
	if usernameTaken {
		return model.User{}, ErrUsernameTaken
	}

	hash, err := utils.HashPassword(in.Password, c.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := c.users.Create(ctx, model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.DefaultRole,
		IsActive:     true,
	})
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		// lost a race with a concurrent registration
		return model.User{}, ErrEmailTaken
	case errors.Is(err, repository.ErrUsernameExists):
		return model.User{}, ErrUsernameTaken
	case err != nil:
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindByIdentifier looks a user up by email when identifier looks like
// one, by username otherwise.  Returns repository.ErrNotFound on a miss.
func (c *Credentials) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if IsEmail(identifier) {
		return c.users.GetByEmail(ctx, NormalizeEmail(identifier))
	}
	return c.users.GetByUsername(ctx, identifier)
}

// FindByEmail looks a user up by normalized email.
func (c *Credentials) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return c.users.GetByEmail(ctx, NormalizeEmail(email))
}

func (c *Credentials) FindByID(ctx context.Context, id uint64) (model.User, error) {
	return c.users.GetByID(ctx, id)
}

// VerifyPassword compares candidate against the user's stored hash.
func (c *Credentials) VerifyPassword(u model.User, candidate string) bool {
	return utils.VerifyPassword(u.PasswordHash, candidate)
}

// HashPassword validates and hashes a new password without storing it.
func (c *Credentials) HashPassword(field, password string) (string, error) {
	if err := ValidatePassword(field, password); err != nil {
		return "", err
	}
	return utils.HashPassword(password, c.cost)
}

// SetPassword replaces the user's stored hash.  Callers must have
// authorized the change already.
func (c *Credentials) SetPassword(ctx context.Context, u model.User, newPassword string) error {
	hash, err := c.HashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}
	return c.users.UpdatePassword(ctx, u.ID, hash)
}

// nowUTC is the default clock for services.
func nowUTC() time.Time { return time.Now().UTC() }
