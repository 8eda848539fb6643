// Package servicetest provides in-memory implementations of the service
// stores and collaborators for tests.
package servicetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/innovatube/innovatube-api/internal/model"
	"github.com/innovatube/innovatube-api/internal/repository"
)

// DB is an in-memory stand-in for the MySQL schema.  Users, Sessions and
// Resets are views over the same data so that Resets.Consume can touch
// all three tables like the real transaction does.
type DB struct {
	mu       sync.Mutex
	users    map[uint64]model.User
	sessions map[string]model.Session
	resets   []model.PasswordReset
	nextID   uint64
}

func NewDB() *DB {
	return &DB{users: map[uint64]model.User{}, sessions: map[string]model.Session{}}
}

func (db *DB) Users() *Users       { return &Users{db} }
func (db *DB) Sessions() *Sessions { return &Sessions{db} }
func (db *DB) Resets() *Resets     { return &Resets{db} }

func (db *DB) id() uint64 { db.nextID++; return db.nextID }

// SessionCount returns how many sessions userID currently has.
func (db *DB) SessionCount(userID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, s := range db.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// ResetRecords returns a copy of every stored reset record.
func (db *DB) ResetRecords() []model.PasswordReset {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.PasswordReset(nil), db.resets...)
}

// SetActive flips a user's is_active flag.
func (db *DB) SetActive(userID uint64, active bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := db.users[userID]
	u.IsActive = active
	db.users[userID] = u
}

type Users struct{ db *DB }

func (s *Users) Create(_ context.Context, u model.User) (model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, repository.ErrEmailExists
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return model.User{}, repository.ErrUsernameExists
		}
	}
	u.ID = s.db.id()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.db.users[u.ID] = u
	return u, nil
}

func (s *Users) FindConflicts(_ context.Context, email, username string) (bool, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var e, n bool
	for _, u := range s.db.users {
		e = e || strings.EqualFold(u.Email, email)
		n = n || strings.EqualFold(u.Username, username)
	}
	return e, n, nil
}

func (s *Users) find(match func(model.User) bool) (model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	return s.find(func(u model.User) bool { return u.Email == email })
}

func (s *Users) GetByUsername(_ context.Context, username string) (model.User, error) {
	return s.find(func(u model.User) bool { return u.Username == username })
}

func (s *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id })
}

func (s *Users) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	s.db.users[id] = u
	return nil
}

type Sessions struct{ db *DB }

func (s *Sessions) Create(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.sessions[tokenHash] = model.Session{ID: s.db.id(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp}
	return nil
}

func (s *Sessions) Replace(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[userID]; !ok {
		return repository.ErrNotFound
	}
	s.db.deleteSessionsLocked(userID)
	s.db.sessions[tokenHash] = model.Session{ID: s.db.id(), UserID: userID, TokenHash: tokenHash, ExpiresAt: exp}
	return nil
}

func (s *Sessions) Find(_ context.Context, tokenHash string) (model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[tokenHash]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return sess, nil
}

func (s *Sessions) DeleteByHash(_ context.Context, tokenHash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.sessions, tokenHash)
	return nil
}

func (s *Sessions) DeleteAllForUser(_ context.Context, userID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.deleteSessionsLocked(userID)
	return nil
}

func (db *DB) deleteSessionsLocked(userID uint64) {
	for h, sess := range db.sessions {
		if sess.UserID == userID {
			delete(db.sessions, h)
		}
	}
}

type Resets struct{ db *DB }

func (s *Resets) Create(_ context.Context, email, codeHash string, exp time.Time) (uint64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec := model.PasswordReset{ID: s.db.id(), Email: email, CodeHash: codeHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	s.db.resets = append(s.db.resets, rec)
	return rec.ID, nil
}

func (s *Resets) FindPending(_ context.Context, email, codeHash string) (model.PasswordReset, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := len(s.db.resets) - 1; i >= 0; i-- {
		r := s.db.resets[i]
		if r.Email == email && r.CodeHash == codeHash && !r.Used {
			return r, nil
		}
	}
	return model.PasswordReset{}, repository.ErrNotFound
}

func (s *Resets) Consume(_ context.Context, resetID, userID uint64, passwordHash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := range s.db.resets {
		if s.db.resets[i].ID != resetID {
			continue
		}
		if s.db.resets[i].Used {
			return repository.ErrNotFound
		}
		u, ok := s.db.users[userID]
		if !ok {
			return repository.ErrNotFound
		}
		s.db.resets[i].Used = true
		u.PasswordHash = passwordHash
		s.db.users[userID] = u
		s.db.deleteSessionsLocked(userID)
		return nil
	}
	return repository.ErrNotFound
}
