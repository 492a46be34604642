/*
aggregate.go - Aggregation engine over the record store

PURPOSE:
  Computes date-range filtered, optionally grouped metrics from stored
  records. Pure reads: for a fixed store state and fixed inputs every
  operation returns the same values (map iteration order aside).

OPERATIONS:
  RevenueByType:        revenue summed per group, or one "total" entry
  CustomerOrderStats:   revenue, order count, distinct customers, AOV
  ProfitMarginByProduct: per-product revenue, cost, (rev-cost)/rev

GUARANTEES:
  - Empty match sets return zero values, never an error and never an
    absent "total" entry.
  - Division guards: average order value is 0 when there are no orders,
    profit margin is 0 when revenue is 0.
  - An unusable range fails with ErrInvalidRange rather than silently
    scanning everything.
  - Store failures propagate as StoreError; the engine never retries.

SEE ALSO:
  - store.go: AggregateQuery / GroupRow contract
  - ingest.go: the write side
*/
package analytics

import (
	"context"

	"github.com/shopspring/decimal"
)

// Engine computes aggregate analytics over a record store.
type Engine struct {
	Store RecordStore
}

// NewEngine creates an engine reading from store.
func NewEngine(store RecordStore) *Engine {
	return &Engine{Store: store}
}

// =============================================================================
// REVENUE BY TYPE
// =============================================================================

// RevenueByType sums revenue over records in rng, grouped by dim. For
// DimensionNone the result holds the single key "total", zero when no
// records match. For grouped dimensions an empty match yields an empty
// mapping.
func (e *Engine) RevenueByType(ctx context.Context, rng Range, dim Dimension) (RevenueByType, error) {
	rows, err := e.query(ctx, rng, dim)
	if err != nil {
		return nil, err
	}

	result := make(RevenueByType, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Revenue
	}
	if dim == DimensionNone {
		if _, ok := result[string(DimensionNone)]; !ok {
			result[string(DimensionNone)] = decimal.Zero
		}
	}
	return result, nil
}

// =============================================================================
// CUSTOMER / ORDER STATS
// =============================================================================

// CustomerOrderStats summarizes the records in rng: total revenue, order
// count, distinct customer count, and average order value. All-zero when
// nothing matches.
func (e *Engine) CustomerOrderStats(ctx context.Context, rng Range) (CustomerOrderStats, error) {
	rows, err := e.query(ctx, rng, DimensionNone)
	if err != nil {
		return CustomerOrderStats{}, err
	}

	stats := CustomerOrderStats{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	if len(rows) == 0 {
		return stats, nil
	}

	row := rows[0]
	stats.TotalRevenue = row.Revenue
	stats.TotalOrders = row.Orders
	stats.TotalCustomers = row.Customers
	if row.Orders > 0 {
		stats.AverageOrderValue = row.Revenue.Div(decimal.NewFromInt(row.Orders))
	}
	return stats, nil
}

// =============================================================================
// PROFIT MARGIN BY PRODUCT
// =============================================================================

// ProfitMarginByProduct groups the records in rng by product name and
// computes summed revenue, summed cost, and profit margin per product.
// Margin is zero when a product's revenue is zero, even with nonzero cost.
func (e *Engine) ProfitMarginByProduct(ctx context.Context, rng Range) (map[string]ProductMargin, error) {
	rows, err := e.query(ctx, rng, DimensionProduct)
	if err != nil {
		return nil, err
	}

	result := make(map[string]ProductMargin, len(rows))
	for _, row := range rows {
		margin := decimal.Zero
		if !row.Revenue.IsZero() {
			margin = row.Revenue.Sub(row.Cost).Div(row.Revenue)
		}
		result[row.Key] = ProductMargin{
			TotalRevenue: row.Revenue,
			TotalCost:    row.Cost,
			ProfitMargin: margin,
		}
	}
	return result, nil
}

// =============================================================================
// SHARED QUERY PATH
// =============================================================================

func (e *Engine) query(ctx context.Context, rng Range, dim Dimension) ([]GroupRow, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	rows, err := e.Store.Aggregate(ctx, AggregateQuery{Range: rng, GroupBy: dim})
	if err != nil {
		return nil, &StoreError{Op: "aggregate", Err: err}
	}
	return rows, nil
}
