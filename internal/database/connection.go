package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtly/court-booking-backend/internal/config"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx, so every repository
// method runs either on the pool or inside a caller's transaction.
type Queryer = sqlx.ExtContext

// AllTenants disables the organization filter (super_admin access)
const AllTenants int64 = 0

// pq error code for unique_violation
const uniqueViolation = "23505"

// PostgresDB wraps the sqlx pool
type PostgresDB struct {
	*sqlx.DB
}

// NewConnection creates a new database connection
func NewConnection(cfg config.DatabaseConfig) (*PostgresDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// NewFromDB wraps an existing handle (used by tests with sqlmock)
func NewFromDB(db *sqlx.DB) *PostgresDB {
	return &PostgresDB{DB: db}
}

// WithinTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (db *PostgresDB) WithinTx(ctx context.Context, fn func(q Queryer) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Queryer returns the pool for reads outside a transaction
func (db *PostgresDB) Queryer() Queryer {
	return db.DB
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// wrapWriteErr maps unique violations to models.ErrConflict
func wrapWriteErr(err error, action string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s: duplicate value", models.ErrConflict, action)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// tenantFilter is the shared predicate for organization-scoped queries;
// $n = 0 matches every organization.
func tenantFilter(column string, n int) string {
	return fmt.Sprintf("($%d = 0 OR %s = $%d)", n, column, n)
}
