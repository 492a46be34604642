/*
store.go - Persistence contract for the record store

PURPOSE:
  Defines the interface between the analytics core and the database. The
  ingestion pipeline writes through BatchSink; the aggregation engine reads
  through Aggregate. Different implementations can use SQLite or in-memory
  storage.

BATCH CONTRACT:
  InsertBatch is all-or-nothing. The pipeline accumulates the full stream
  before calling it, so a failed ingestion never leaves partial rows behind.

REFRESH CONTRACT:
  DeleteAll + InsertBatch are NOT transactional with each other. A crash
  between them leaves the store empty. This data-loss window is documented
  behavior of the full-replace refresh, not something the store hides.

AGGREGATE CONTRACT:
  Aggregate pushes filter+group+project down to the store: it filters records
  to the inclusive date range, buckets them by the dimension key, and returns
  one GroupRow per bucket with every accumulator populated (summed revenue,
  summed cost, record count, distinct customer count). Callers project the
  columns they need. Row order is not specified.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite store
  - analytics/store/memory.go: in-memory store for testing/dev
*/
package analytics

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// BatchSink is the write half of the record store, the only handle the
// ingestion pipeline needs.
type BatchSink interface {
	// InsertBatch persists records as one atomic batch and returns the
	// number inserted. An empty batch is a no-op returning zero.
	InsertBatch(ctx context.Context, records []Record) (int, error)
}

// RecordStore is the full append-and-query collection of records.
// Records are immutable once stored; the only mutation beyond appending
// batches is the wholesale DeleteAll used by refresh.
type RecordStore interface {
	BatchSink

	// DeleteAll removes every record and returns the number deleted.
	DeleteAll(ctx context.Context) (int64, error)

	// Aggregate computes grouped accumulators over the records whose date
	// falls within q.Range (inclusive). It returns no rows when nothing
	// matches; zero-filling is the engine's job.
	Aggregate(ctx context.Context, q AggregateQuery) ([]GroupRow, error)
}

// =============================================================================
// AGGREGATE QUERY / RESULT ROWS
// =============================================================================

// AggregateQuery describes one filter+group computation.
type AggregateQuery struct {
	Range   Range
	GroupBy Dimension
}

// GroupRow is one group bucket with all accumulators populated.
type GroupRow struct {
	Key       string
	Revenue   decimal.Decimal
	Cost      decimal.Decimal
	Orders    int64
	Customers int64
}

// =============================================================================
// SHARED FOLD
// =============================================================================

// GroupAccumulator folds matching records into GroupRows. Both store
// implementations use it so their grouping semantics cannot drift apart.
type GroupAccumulator struct {
	groupBy Dimension
	groups  map[string]*groupState
}

type groupState struct {
	revenue   decimal.Decimal
	cost      decimal.Decimal
	orders    int64
	customers map[string]struct{}
}

// NewGroupAccumulator returns an accumulator for the given dimension.
func NewGroupAccumulator(groupBy Dimension) *GroupAccumulator {
	return &GroupAccumulator{
		groupBy: groupBy,
		groups:  make(map[string]*groupState),
	}
}

// Add folds one matching record into its group bucket.
func (a *GroupAccumulator) Add(rec Record) {
	key := a.groupBy.Key(rec)
	st, ok := a.groups[key]
	if !ok {
		st = &groupState{customers: make(map[string]struct{})}
		a.groups[key] = st
	}
	st.revenue = st.revenue.Add(rec.Revenue)
	st.cost = st.cost.Add(rec.Cost)
	st.orders++
	st.customers[rec.CustomerID] = struct{}{}
}

// Rows materializes the buckets. Order is unspecified.
func (a *GroupAccumulator) Rows() []GroupRow {
	rows := make([]GroupRow, 0, len(a.groups))
	for key, st := range a.groups {
		rows = append(rows, GroupRow{
			Key:       key,
			Revenue:   st.revenue,
			Cost:      st.cost,
			Orders:    st.orders,
			Customers: int64(len(st.customers)),
		})
	}
	return rows
}
