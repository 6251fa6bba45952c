package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Postgres implements all repository interfaces against a single database so
// that cart, ledger and order writes can share one transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(cred *Credentials) (*Postgres, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Postgres{db: db}, nil
}

func (r *Postgres) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Postgres) Close() error {
	return r.db.Close()
}

// lockTimeout bounds every lock wait inside a transaction so no operation
// blocks indefinitely; exceeding it surfaces as ErrTxConflict.
const lockTimeout = "3s"

// withTx runs fn inside a transaction with a bounded lock wait and maps
// contention failures to ErrTxConflict.
func (r *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, e2 := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockTimeout)); e2 != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set lock_timeout: %w", e2)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapPQError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapPQError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// lockCart serializes cart mutation and checkout per customer. The advisory
// lock is transaction-scoped and released automatically at commit/rollback.
func lockCart(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID.String())
	if err != nil {
		return fmt.Errorf("acquire cart lock: %w", err)
	}
	return nil
}

// mapPQError translates contention conditions into the retriable
// ErrTxConflict; everything else passes through unchanged.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", // lock_not_available
			"40P01", // deadlock_detected
			"40001": // serialization_failure
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
	}
	return err
}
