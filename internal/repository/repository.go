package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cass-tech/storefront/internal/config"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/cass-tech/storefront/internal/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var (
	ErrUnsupportedDatabase = errors.New("unsupported database type")
	ErrAttemptNotFound     = errors.New("payment attempt not found")
)

// Ledger records gateway interactions and the checkout completed outbox event.
type Ledger interface {
	RecordAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error
	UpdateAttemptStatus(ctx context.Context, id string, status domain.AttemptStatus, errMsg string) error
	RecordCompletion(ctx context.Context, attempt *domain.PaymentAttempt, event *OutboxEvent) error
	AttemptsByCheckout(ctx context.Context, checkoutID string) ([]*domain.PaymentAttempt, error)
}

// OutboxStore is the publisher's view of the outbox table.
type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

type Repository struct {
	db      *sql.DB
	dialect string
}

func NewRepository(cfg config.DatabaseConfig) (*Repository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Type {
	case DialectSQLite:
		db, err = sql.Open("sqlite", cfg.Path)
	case DialectPostgres:
		db, err = sql.Open("postgres", fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Type == DialectSQLite {
		// one writer, and every :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	log.L(context.Background()).WithField("dialect", cfg.Type).Info("connected to database")
	return &Repository{db: db, dialect: cfg.Type}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		r.dialect,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
