package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"fleximart-etl/internal/models"
)

// Tx is a unit of work on the normalized store
type Tx interface {
	// InsertCustomer inserts c unless its email is already present
	InsertCustomer(ctx context.Context, c *models.Customer) error
	// InsertProduct inserts p unless its (name, category) is already present
	InsertProduct(ctx context.Context, p *models.Product) error
	CreateOrder(ctx context.Context, o *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	Commit() error
	Rollback() error
}

// Store is the normalized (transactional) store
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := connect(databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// the pipeline is single threaded; keep the pool small
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Begin opens a transaction
func (s *Store) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classified("begin", err)
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) Commit() error {
	return classified("commit", t.tx.Commit())
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

// withSavepoint runs fn so that a failing statement only discards its own
// work instead of aborting the whole transaction.
func (t *sqlTx) withSavepoint(ctx context.Context, fn func() error) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT row_insert"); err != nil {
		return classified("savepoint", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT row_insert"); rbErr != nil {
			return classified("rollback to savepoint", rbErr)
		}
		return err
	}

	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT row_insert")
	return classified("release savepoint", err)
}

// valuesList renders "($1,$2),($3,$4)" for rows×cols placeholders
func valuesList(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
