// Package repository defines error types that are reused across multiple
// repositories.  Handlers and services never see sql.ErrNoRows or raw
// driver errors for the cases below; they get these sentinels instead.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row, or when a
// conditional update (e.g. consuming a reset code) affected nothing.
var ErrNotFound = errors.New("not found")

// ErrEmailExists and ErrUsernameExists are returned when an insert
// violates the corresponding unique index.
var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// duplicateKey returns the MySQL error when err is a unique-index
// violation.
func duplicateKey(err error) (*mysql.MySQLError, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return me, true
	}
	return nil, false
}
