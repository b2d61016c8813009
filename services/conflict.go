package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	mysqlDuplicateEntry  = 1062
	pgUniqueViolation    = "23505"
	liveAssignmentIndex  = "uq_loan_application_assignment_live_pair"
	liveAssignmentColumn = "credit_manager_id"
)

// uniqueViolation reports whether err is a unique-constraint violation and,
// when the driver exposes it, which constraint was hit.
func uniqueViolation(err error) (constraint string, ok bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return pgErr.ConstraintName, true
		}
		return "", false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == mysqlDuplicateEntry {
			return myErr.Message, true
		}
		return "", false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return liteErr.Error(), true
		}
		if code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE") {
			return liteErr.Error(), true
		}
		return "", false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}

// isLiveAssignmentConflict reports whether err is a violation of the
// one-live-assignment-per-pair constraint. Violations of other constraints
// are storage faults and must propagate.
func isLiveAssignmentConflict(err error) bool {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return false
	}
	if constraint == "" {
		return true
	}
	return strings.Contains(constraint, liveAssignmentIndex) ||
		strings.Contains(constraint, liveAssignmentColumn)
}
