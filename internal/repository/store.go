package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes handled by the repositories
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store groups the repositories and scopes them to transactions.
type Store interface {
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Selections() SelectionRepository

	// WithTx runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a Store that is already transactional runs fn in the
	// same transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	db *sql.DB // nil when bound to a transaction
	q  DBTX
}

// NewStore creates a Store backed by the given connection pool
func NewStore(db *sql.DB) Store {
	return &sqlStore{db: db, q: db}
}

func (s *sqlStore) Users() UserRepository                 { return NewUserRepository(s.q) }
func (s *sqlStore) RefreshTokens() RefreshTokenRepository { return NewRefreshTokenRepository(s.q) }
func (s *sqlStore) Categories() CategoryRepository        { return NewCategoryRepository(s.q) }
func (s *sqlStore) Products() ProductRepository           { return NewProductRepository(s.q) }
func (s *sqlStore) Selections() SelectionRepository       { return NewSelectionRepository(s.q) }

func (s *sqlStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cerr)
		}
	}()

	return fn(&sqlStore{q: tx})
}

func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isForeignKeyViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgForeignKeyViolation
}

func nullableInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
