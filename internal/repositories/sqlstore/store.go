// Package sqlstore persists products and orders in Postgres (lib/pq) or SQLite
// (modernc.org/sqlite). Queries are written with '?' placeholders and rebound per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

// Dialect selects driver-specific SQL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) driverName() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return ""
	}
}

// Store is a database/sql backed repositories.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	ownsDB  bool
}

var _ repositories.Store = (*Store)(nil)

// Open connects using dsn and verifies the connection. SQLite databases are limited to a
// single connection so writers are serialised.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driver := dialect.driverName()
	if driver == "" {
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: enable foreign keys: %w", err)
		}
	}

	store, err := New(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// New wraps an existing handle. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is required")
	}
	if dialect.driverName() == "" {
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Products() repositories.ProductRepository { return productRepository{store: s} }

func (s *Store) Orders() repositories.OrderRepository { return orderRepository{store: s} }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("sql.ping", err)
	}
	return nil
}

// Close releases the handle when Open created it.
func (s *Store) Close(context.Context) error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// RunOrderTx implements repositories.OrderUnitOfWork. Postgres runs at read committed with
// row locks taken by GetProductForUpdate; the decrement is conditional on every dialect.
func (s *Store) RunOrderTx(ctx context.Context, fn func(ctx context.Context, tx repositories.OrderTx) error) (err error) {
	opts := &sql.TxOptions{}
	if s.dialect == DialectPostgres {
		opts.Isolation = sql.LevelReadCommitted
	}

	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return classify("sql.tx.begin", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &orderTx{tx: sqlTx, store: s}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return classify("sql.tx.commit", err)
	}
	return nil
}

// rebind rewrites '?' placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
