package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Email is stored trimmed and lowercased; username is
// stored as entered.  Users are deactivated, never deleted.
type User struct {
	ID           uint64    // users.id
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Username     string    // users.username (unique)
	Email        string    // users.email (unique, lowercase)
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// DefaultRole is assigned to every self-registered user.
const DefaultRole = "user"
