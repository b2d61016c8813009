package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// TxManager holds the process-wide gorm handle and opens transaction scopes
// on it. Build one at startup and pass it to whatever needs storage.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// DB returns the underlying handle.
func (m *TxManager) DB() *gorm.DB {
	return m.db
}

// WithinScope runs fn inside one database transaction. Everything done
// through the scope commits when fn returns nil and rolls back when fn
// returns an error or panics. The transaction is bound to ctx.
func (m *TxManager) WithinScope(ctx context.Context, fn func(scope *Scope) error) error {
	if m == nil || m.db == nil {
		return errors.New("database not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Scope{tx: tx})
	})
}

// ReadScope returns a non-transactional scope for plain reads.
func (m *TxManager) ReadScope(ctx context.Context) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scope{tx: m.db.WithContext(ctx)}
}

// Scope is one unit of work against storage. Operations given the same
// scope commit or roll back together.
type Scope struct {
	tx *gorm.DB
}

// NewScope wraps a handle the caller already owns, typically a *gorm.DB
// obtained inside db.Transaction.
func NewScope(tx *gorm.DB) *Scope {
	return &Scope{tx: tx}
}

// Tx exposes the scope's handle so callers can add their own statements to
// the same unit of work.
func (s *Scope) Tx() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.tx
}

// Context returns the context the scope is bound to.
func (s *Scope) Context() context.Context {
	if s == nil || s.tx == nil || s.tx.Statement == nil || s.tx.Statement.Context == nil {
		return context.Background()
	}
	return s.tx.Statement.Context
}

func (s *Scope) session() (*gorm.DB, error) {
	if s == nil || s.tx == nil {
		return nil, &ValidationError{Field: "scope", Reason: "is required"}
	}
	return s.tx, nil
}
