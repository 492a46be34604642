/*
Package analytics contains the core of the sales analytics service.

PURPOSE:
  Two tightly coupled pieces do the actual work:
  - Ingestion pipeline (ingest.go): CSV rows -> normalized records -> one
    atomic batch write into the record store.
  - Aggregation engine (aggregate.go): date-range filtered, optionally
    grouped metrics computed over stored records.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: one normalized sales transaction, the sole persisted entity
  - Range: inclusive [From, To] date bounds for aggregation
  - Dimension: the grouping field (product, category, region, or none)
  - Result shapes: RevenueByType, CustomerOrderStats, ProductMargin

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every money field, never float math
  2. Derived fields: revenue and cost are computed exactly once, at
     ingestion; they are never supplied by input and never recomputed later
  3. Immutability: records are never updated; the only mutation is the full
     delete-then-reingest refresh

SEE ALSO:
  - store.go: RecordStore contract shared by both components
  - ingest.go: pipeline producing Records
  - aggregate.go: engine consuming Records
*/
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD - Normalized sales transaction
// =============================================================================

// Record is one row of normalized sales data.
//
// OrderID is not a key: the source data may legitimately contain the same
// order id on multiple rows and the store keeps all of them.
type Record struct {
	OrderID    string
	ProductID  string
	CustomerID string

	ProductName string
	Category    string
	Region      string

	Date time.Time

	QuantitySold int64
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal

	PaymentMethod   string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string

	// Derived at ingestion time. See Derive.
	Revenue decimal.Decimal
	Cost    decimal.Decimal
}

// costOfGoodsRate is the fixed 50% cost-of-goods assumption.
var costOfGoodsRate = decimal.RequireFromString("0.5")

// Derive recomputes the revenue and cost fields from the numeric inputs:
//
//	revenue = quantity_sold * unit_price * (1 - discount)
//	cost    = quantity_sold * unit_price * 0.5
func (r *Record) Derive() {
	qty := decimal.NewFromInt(r.QuantitySold)
	gross := qty.Mul(r.UnitPrice)
	r.Revenue = gross.Mul(decimal.NewFromInt(1).Sub(r.Discount))
	r.Cost = gross.Mul(costOfGoodsRate)
}

// =============================================================================
// RANGE - Inclusive date bounds
// =============================================================================

// Range is an inclusive [From, To] filter over Record.Date.
type Range struct {
	From time.Time
	To   time.Time
}

// Validate rejects zero or inverted bounds. The engine never scans
// unfiltered: an unusable range is an error, not "everything".
func (rg Range) Validate() error {
	if rg.From.IsZero() || rg.To.IsZero() {
		return &RangeError{Range: rg, Reason: "missing bound"}
	}
	if rg.To.Before(rg.From) {
		return &RangeError{Range: rg, Reason: "to before from"}
	}
	return nil
}

// Contains reports whether t falls within the inclusive bounds.
func (rg Range) Contains(t time.Time) bool {
	return !t.Before(rg.From) && !t.After(rg.To)
}

// =============================================================================
// DIMENSION - Grouping field
// =============================================================================

// Dimension selects the field used to bucket records in an aggregation.
type Dimension string

const (
	DimensionNone     Dimension = "total"
	DimensionProduct  Dimension = "product"
	DimensionCategory Dimension = "category"
	DimensionRegion   Dimension = "region"
)

// ParseDimension maps a query-string value to a Dimension.
// An empty value defaults to DimensionNone, matching the API default.
func ParseDimension(s string) (Dimension, bool) {
	switch Dimension(s) {
	case "":
		return DimensionNone, true
	case DimensionNone, DimensionProduct, DimensionCategory, DimensionRegion:
		return Dimension(s), true
	default:
		return "", false
	}
}

// Key returns the grouping key of rec under the dimension.
// DimensionNone collapses every record into the single "total" bucket.
func (d Dimension) Key(rec Record) string {
	switch d {
	case DimensionProduct:
		return rec.ProductName
	case DimensionCategory:
		return rec.Category
	case DimensionRegion:
		return rec.Region
	default:
		return string(DimensionNone)
	}
}

// =============================================================================
// AGGREGATION RESULTS
// =============================================================================

// RevenueByType maps a group key to its summed revenue. For DimensionNone
// the mapping holds exactly one entry keyed "total", zero-valued when no
// records match.
type RevenueByType map[string]decimal.Decimal

// CustomerOrderStats summarizes orders and customers over a range.
type CustomerOrderStats struct {
	TotalRevenue      decimal.Decimal
	TotalOrders       int64
	TotalCustomers    int64
	AverageOrderValue decimal.Decimal
}

// ProductMargin is the per-product profit breakdown.
// ProfitMargin = (revenue - cost) / revenue, or zero when revenue is zero.
type ProductMargin struct {
	TotalRevenue decimal.Decimal
	TotalCost    decimal.Decimal
	ProfitMargin decimal.Decimal
}

// =============================================================================
// INGESTION SUMMARY
// =============================================================================

// SkippedRow records one row the pipeline dropped, with enough context for
// tests and operators to assert on why. Line numbers are 1-based and count
// the header row.
type SkippedRow struct {
	Line   int
	Reason string
}

// IngestSummary is the terminal result of a successful ingestion: how many
// records were committed and which rows were skipped. An ingestion either
// produces a summary or a single terminal error, never a partial write.
type IngestSummary struct {
	Inserted int
	Skipped  int
	Skips    []SkippedRow
}
