/*
Package sqlite provides the SQLite-backed implementation of the record store.

PURPOSE:
  Implements analytics.RecordStore using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

CONNECT-ONCE HANDLE:
  New returns a handle immediately; the connection and schema migration
  happen on first use, guarded by sync.Once. Concurrent first-use attempts
  share one setup and one outcome. This replaces any module-level
  "connected" flag: the handle is constructed once at process start and
  passed by reference to both the pipeline and the engine.

KEY TABLE:
  records: immutable rows of normalized sales data. Deliberately NO unique
  index on order_id - duplicate order ids are permitted and kept.

DECIMALS:
  Money columns (unit_price, discount, shipping_cost, revenue, cost) are
  stored as TEXT and parsed back into decimal.Decimal. Aggregation sums are
  computed in Go with decimals so results stay exact; the date filter is
  pushed down to SQL (RFC 3339 UTC strings compare lexicographically).

ATOMIC BATCHES:
  InsertBatch runs inside one sql.Tx: either the whole ingestion batch
  lands or none of it does.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

CONCURRENCY:
  sync.RWMutex on the handle. A refresh running concurrently with a read
  may observe an empty or partially-reloaded store; that transient state is
  an accepted trade-off of the non-transactional refresh, not masked here.

USAGE:
  st := sqlite.New("./data/analytics.db")   // ":memory:" for tests
  defer st.Close()

SEE ALSO:
  - analytics/store.go: interface and aggregate contract
  - analytics/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/sales-analytics/analytics"
)

// Store implements analytics.RecordStore using SQLite.
type Store struct {
	path string

	mu      sync.RWMutex
	once    sync.Once
	db      *sql.DB
	openErr error
}

// New creates a store handle for the given database path. Use ":memory:"
// for an in-memory database. The connection is established lazily and
// exactly once, on first use.
func New(path string) *Store {
	return &Store{path: path}
}

// Close closes the database connection if one was ever established.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ensureOpen establishes the connection and migrates the schema, exactly
// once. Every caller after a failed setup sees the same error.
func (s *Store) ensureOpen() (*sql.DB, error) {
	s.once.Do(func() {
		db, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on&_journal_mode=WAL")
		if err != nil {
			s.openErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		// SQLite has a single writer, and a second pool connection to a
		// ":memory:" path would be a separate empty database.
		db.SetMaxOpenConns(1)
		if err := migrate(db); err != nil {
			db.Close()
			s.openErr = fmt.Errorf("failed to migrate database: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.openErr
}

// migrate creates the database schema.
func migrate(db *sql.DB) error {
	schema := `
	-- Normalized sales records. Append-and-query only: rows are never
	-- updated, and the only delete is the wholesale refresh.
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		category TEXT NOT NULL,
		region TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		quantity_sold INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		discount TEXT NOT NULL,
		shipping_cost TEXT NOT NULL,
		payment_method TEXT,
		customer_name TEXT,
		customer_email TEXT,
		customer_address TEXT,
		revenue TEXT NOT NULL,
		cost TEXT NOT NULL
	);

	-- Hot path: every aggregation filters on the sale date first.
	CREATE INDEX IF NOT EXISTS idx_records_sale_date
		ON records(sale_date);

	-- Grouping dimensions.
	CREATE INDEX IF NOT EXISTS idx_records_product_name
		ON records(product_name);
	CREATE INDEX IF NOT EXISTS idx_records_category
		ON records(category);
	CREATE INDEX IF NOT EXISTS idx_records_region
		ON records(region);

	-- NOTE: no unique index on order_id. Duplicates are permitted.
	`

	_, err := db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (analytics.RecordStore interface)
// =============================================================================

// InsertBatch writes the records atomically and returns how many landed.
func (s *Store) InsertBatch(ctx context.Context, records []analytics.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	db, err := s.ensureOpen()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
		(order_id, product_id, customer_id, product_name, category, region,
		 sale_date, quantity_sold, unit_price, discount, shipping_cost,
		 payment_method, customer_name, customer_email, customer_address,
		 revenue, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.OrderID,
			rec.ProductID,
			rec.CustomerID,
			rec.ProductName,
			rec.Category,
			rec.Region,
			rec.Date.UTC().Format(time.RFC3339),
			rec.QuantitySold,
			rec.UnitPrice.String(),
			rec.Discount.String(),
			rec.ShippingCost.String(),
			rec.PaymentMethod,
			rec.CustomerName,
			rec.CustomerEmail,
			rec.CustomerAddress,
			rec.Revenue.String(),
			rec.Cost.String(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return len(records), nil
}

// DeleteAll removes every record and returns the deleted count.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	db, err := s.ensureOpen()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := db.ExecContext(ctx, "DELETE FROM records")
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted records: %w", err)
	}
	return n, nil
}

// Aggregate filters records to the inclusive date range in SQL and folds
// the matching rows into grouped accumulators with exact decimal sums.
func (s *Store) Aggregate(ctx context.Context, q analytics.AggregateQuery) ([]analytics.GroupRow, error) {
	db, err := s.ensureOpen()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := db.QueryContext(ctx, `
		SELECT product_name, category, region, customer_id, sale_date, revenue, cost
		FROM records
		WHERE sale_date >= ? AND sale_date <= ?
	`,
		q.Range.From.UTC().Format(time.RFC3339),
		q.Range.To.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	acc := analytics.NewGroupAccumulator(q.GroupBy)
	matched := false
	for rows.Next() {
		var (
			rec                     analytics.Record
			saleDate, revenue, cost string
		)
		if err := rows.Scan(&rec.ProductName, &rec.Category, &rec.Region,
			&rec.CustomerID, &saleDate, &revenue, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Date, _ = time.Parse(time.RFC3339, saleDate)
		rec.Revenue = mustDecimal(revenue)
		rec.Cost = mustDecimal(cost)
		acc.Add(rec)
		matched = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	if !matched {
		return nil, nil
	}
	return acc.Rows(), nil
}

// mustDecimal parses a stored decimal column. Values were written by
// Decimal.String; an unparsable column falls back to zero.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
