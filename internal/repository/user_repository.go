package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/innovatube/innovatube-api/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,first_name,last_name,username,email,password_hash,role,is_active,created_at,updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email,
		&u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// Create inserts u and returns it with its new ID.  The password hash must
// already be set.  Unique-index violations are reported as ErrEmailExists
// or ErrUsernameExists depending on which index fired.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	if u.Role == "" {
		u.Role = model.DefaultRole
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (first_name,last_name,username,email,password_hash,role) VALUES (?,?,?,?,?,?)",
		u.FirstName, u.LastName, u.Username, u.Email, u.PasswordHash, u.Role)
	if err != nil {
		if me, ok := duplicateKey(err); ok {
			if strings.Contains(me.Message, "uq_users_username") {
				return model.User{}, ErrUsernameExists
			}
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// FindConflicts reports which of email and username are already taken.
func (r *UserRepo) FindConflicts(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT email, username FROM users WHERE email=? OR username=? LIMIT 2",
		email, username)
	if err != nil {
		return false, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var e, u string
		if err := rows.Scan(&e, &u); err != nil {
			return false, false, err
		}
		if strings.EqualFold(e, email) {
			emailTaken = true
		}
		if strings.EqualFold(u, username) {
			usernameTaken = true
		}
	}
	return emailTaken, usernameTaken, rows.Err()
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdatePassword replaces the stored hash for a user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
