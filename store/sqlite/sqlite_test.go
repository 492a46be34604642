package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sales-analytics/analytics"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := New(":memory:")
	t.Cleanup(func() { st.Close() })
	return st
}

func testRecord(orderID, product, customer string, date time.Time, qty int64, price string) analytics.Record {
	rec := analytics.Record{
		OrderID:      orderID,
		ProductID:    "p-" + product,
		CustomerID:   customer,
		ProductName:  product,
		Category:     "Widgets",
		Region:       "West",
		Date:         date,
		QuantitySold: qty,
		UnitPrice:    decimal.RequireFromString(price),
		Discount:     decimal.Zero,
		ShippingCost: decimal.RequireFromString("2.50"),
	}
	rec.Derive()
	return rec
}

func utc(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// INSERT + AGGREGATE
// =============================================================================

func TestInsertBatchAndAggregate(t *testing.T) {
	// GIVEN a batch from two customers
	st := newTestStore(t)
	ctx := context.Background()

	n, err := st.InsertBatch(ctx, []analytics.Record{
		testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 2, "10"),
		testRecord("o-2", "Widget B", "c-2", utc(2024, 1, 20), 1, "5"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// WHEN aggregating the whole month ungrouped
	rows, err := st.Aggregate(ctx, analytics.AggregateQuery{
		Range:   analytics.Range{From: utc(2024, 1, 1), To: utc(2024, 1, 31)},
		GroupBy: analytics.DimensionNone,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// THEN sums and distinct counts survive the round trip exactly
	total := rows[0]
	assert.Equal(t, "total", total.Key)
	assert.True(t, total.Revenue.Equal(decimal.RequireFromString("25")),
		"expected revenue 25, got %v", total.Revenue)
	assert.True(t, total.Cost.Equal(decimal.RequireFromString("12.5")),
		"expected cost 12.5, got %v", total.Cost)
	assert.Equal(t, int64(2), total.Orders)
	assert.Equal(t, int64(2), total.Customers)
}

func TestAggregate_GroupedByProduct(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertBatch(ctx, []analytics.Record{
		testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 2, "10"),
		testRecord("o-2", "Widget A", "c-2", utc(2024, 1, 11), 1, "10"),
		testRecord("o-3", "Widget B", "c-1", utc(2024, 1, 20), 1, "5"),
	})
	require.NoError(t, err)

	rows, err := st.Aggregate(ctx, analytics.AggregateQuery{
		Range:   analytics.Range{From: utc(2024, 1, 1), To: utc(2024, 1, 31)},
		GroupBy: analytics.DimensionProduct,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byKey := make(map[string]analytics.GroupRow, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r
	}
	a := byKey["Widget A"]
	assert.True(t, a.Revenue.Equal(decimal.RequireFromString("30")),
		"expected Widget A revenue 30, got %v", a.Revenue)
	assert.Equal(t, int64(2), a.Orders)
	assert.Equal(t, int64(2), a.Customers)
}

func TestAggregate_RangeIsInclusive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertBatch(ctx, []analytics.Record{
		testRecord("o-1", "Edge", "c-1", utc(2024, 1, 1), 1, "10"),
		testRecord("o-2", "Edge", "c-2", utc(2024, 1, 31), 1, "10"),
		testRecord("o-3", "Edge", "c-3", utc(2024, 2, 1), 1, "10"),
	})
	require.NoError(t, err)

	rows, err := st.Aggregate(ctx, analytics.AggregateQuery{
		Range:   analytics.Range{From: utc(2024, 1, 1), To: utc(2024, 1, 31)},
		GroupBy: analytics.DimensionNone,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Orders, "both boundary days belong to the range")
}

func TestAggregate_NoMatchesReturnsNoRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertBatch(ctx, []analytics.Record{
		testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 1, "10"),
	})
	require.NoError(t, err)

	rows, err := st.Aggregate(ctx, analytics.AggregateQuery{
		Range:   analytics.Range{From: utc(2030, 1, 1), To: utc(2030, 1, 31)},
		GroupBy: analytics.DimensionNone,
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// DELETE / DUPLICATES / EMPTY BATCH
// =============================================================================

func TestDeleteAllReportsCount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertBatch(ctx, []analytics.Record{
		testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 1, "10"),
		testRecord("o-2", "Widget B", "c-2", utc(2024, 1, 11), 1, "10"),
	})
	require.NoError(t, err)

	deleted, err := st.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// A second delete finds nothing.
	deleted, err = st.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestDuplicateOrderIDsAreKept(t *testing.T) {
	// Source files can legitimately repeat an order id; both rows count.
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.InsertBatch(ctx, []analytics.Record{
		testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 1, "10"),
		testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 1, "10"),
	})
	require.NoError(t, err)

	rows, err := st.Aggregate(ctx, analytics.AggregateQuery{
		Range:   analytics.Range{From: utc(2024, 1, 1), To: utc(2024, 1, 31)},
		GroupBy: analytics.DimensionNone,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Orders)
	assert.True(t, rows[0].Revenue.Equal(decimal.RequireFromString("20")))
}

func TestInsertEmptyBatchIsNoOp(t *testing.T) {
	st := newTestStore(t)

	n, err := st.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// CONNECT-ONCE HANDLE
// =============================================================================

func TestConcurrentFirstUseSharesOneConnection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.InsertBatch(ctx, []analytics.Record{
				testRecord("o-1", "Widget A", "c-1", utc(2024, 1, 10), 1, "10"),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := st.Aggregate(ctx, analytics.AggregateQuery{
		Range:   analytics.Range{From: utc(2024, 1, 1), To: utc(2024, 1, 31)},
		GroupBy: analytics.DimensionNone,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(8), rows[0].Orders)
}
