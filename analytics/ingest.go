/*
ingest.go - CSV-to-record ingestion pipeline

PURPOSE:
  Reads a CSV stream in the fixed sales-export schema, coerces and derives
  the numeric fields, and loads the result into the record store as one
  atomic batch.

DATA FLOW:
  stream -> header check -> per-row parse/coerce/derive -> buffer -> batch write

ROW POLICY (deliberately lenient):
  - Unparsable sale date: the ROW is skipped and the skip recorded in the
    summary. A sentinel date would silently pollute every range query and
    aborting the file would punish thousands of good rows for one bad one.
  - Non-numeric quantity/price/discount/shipping: the FIELD coerces to zero
    and the row survives. Partial numeric data must not block ingestion.
  - Wrong column count on a row: the row is skipped, the stream continues.

STREAM POLICY (strict):
  - Structurally broken CSV (bad quoting, unreadable header, missing
    required columns): ParseError, nothing written.
  - I/O failure mid-read: StreamError, buffer discarded, nothing written.
  The batch write happens only after the stream fully drains, so a failed
  ingestion never commits partial data.

REFRESH:
  Refresh deletes all existing records, then ingests. The delete and the
  re-ingestion are not one transaction: a crash between them leaves the
  store empty. That window is documented, not hidden.

SEE ALSO:
  - store.go: BatchSink / RecordStore contracts
  - errors.go: ParseError / StreamError taxonomy
*/
package analytics

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLUMN SCHEMA
// =============================================================================

// Fixed header schema of the sales export.
const (
	colOrderID         = "Order ID"
	colProductID       = "Product ID"
	colCustomerID      = "Customer ID"
	colProductName     = "Product Name"
	colCategory        = "Category"
	colRegion          = "Region"
	colDateOfSale      = "Date of Sale"
	colQuantitySold    = "Quantity Sold"
	colUnitPrice       = "Unit Price"
	colDiscount        = "Discount"
	colShippingCost    = "Shipping Cost"
	colPaymentMethod   = "Payment Method"
	colCustomerName    = "Customer Name"
	colCustomerEmail   = "Customer Email"
	colCustomerAddress = "Customer Address"
)

var requiredColumns = []string{
	colOrderID, colProductID, colCustomerID, colProductName, colCategory,
	colRegion, colDateOfSale, colQuantitySold, colUnitPrice, colDiscount,
	colShippingCost, colPaymentMethod, colCustomerName, colCustomerEmail,
	colCustomerAddress,
}

// Accepted layouts for the Date of Sale column. Parsed values are pinned
// to UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline ingests CSV sales data into a record store.
type Pipeline struct {
	log *slog.Logger
}

// NewPipeline creates a pipeline. A nil logger falls back to slog.Default.
func NewPipeline(log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{log: log}
}

// Ingest drains the CSV stream, accumulates the parsed records, and writes
// them to the sink as one atomic batch. It returns a summary of inserted
// and skipped rows on success, or a single terminal error with nothing
// committed. The input stream is never mutated or closed.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, sink BatchSink) (IngestSummary, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		// No header at all: not well-formed delimited text in this schema.
		return IngestSummary{}, &ParseError{Line: 1, Err: errors.New("empty stream, header expected")}
	}
	if err != nil {
		return IngestSummary{}, classifyReadError(err)
	}

	cols, err := indexColumns(header)
	if err != nil {
		return IngestSummary{}, &ParseError{Line: 1, Err: err}
	}

	var (
		buf     []Record
		summary IngestSummary
		line    = 1 // header consumed
	)

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
				// One ragged row does not abort the stream.
				summary.skip(line, "wrong field count")
				continue
			}
			return IngestSummary{}, classifyReadError(err)
		}

		rec, skip := parseRow(cols, fields, line)
		if skip != nil {
			summary.Skipped++
			summary.Skips = append(summary.Skips, *skip)
			continue
		}
		buf = append(buf, rec)
	}

	// Empty buffer is a no-op, not an error.
	if len(buf) > 0 {
		n, err := sink.InsertBatch(ctx, buf)
		if err != nil {
			return IngestSummary{}, &StoreError{Op: "insert batch", Err: err}
		}
		summary.Inserted = n
	}

	p.log.Info("ingestion complete",
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// Refresh wholesale-replaces the store contents: delete everything, then
// ingest the stream. Returns the deleted count alongside the summary.
func (p *Pipeline) Refresh(ctx context.Context, r io.Reader, store RecordStore) (int64, IngestSummary, error) {
	deleted, err := store.DeleteAll(ctx)
	if err != nil {
		return 0, IngestSummary{}, &StoreError{Op: "delete all", Err: err}
	}
	p.log.Info("store cleared for refresh", "deleted", deleted)

	summary, err := p.Ingest(ctx, r, store)
	if err != nil {
		return deleted, IngestSummary{}, err
	}
	return deleted, summary, nil
}

func (s *IngestSummary) skip(line int, reason string) {
	s.Skipped++
	s.Skips = append(s.Skips, SkippedRow{Line: line, Reason: reason})
}

// =============================================================================
// ROW PARSING
// =============================================================================

// indexColumns maps the fixed schema to field positions and rejects a
// header missing any required column.
func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// parseRow converts one CSV row into a Record, or a typed skip when the
// row cannot be kept. Field-level numeric failures never skip the row.
func parseRow(cols map[string]int, fields []string, line int) (Record, *SkippedRow) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	date, ok := parseDate(field(colDateOfSale))
	if !ok {
		return Record{}, &SkippedRow{Line: line, Reason: "bad date: " + field(colDateOfSale)}
	}

	rec := Record{
		OrderID:         field(colOrderID),
		ProductID:       field(colProductID),
		CustomerID:      field(colCustomerID),
		ProductName:     field(colProductName),
		Category:        field(colCategory),
		Region:          field(colRegion),
		Date:            date,
		QuantitySold:    coerceQuantity(field(colQuantitySold)),
		UnitPrice:       coerceDecimal(field(colUnitPrice)),
		Discount:        coerceDecimal(field(colDiscount)),
		ShippingCost:    coerceDecimal(field(colShippingCost)),
		PaymentMethod:   field(colPaymentMethod),
		CustomerName:    field(colCustomerName),
		CustomerEmail:   field(colCustomerEmail),
		CustomerAddress: field(colCustomerAddress),
	}
	rec.Derive()
	return rec, nil
}

// parseDate tries the accepted layouts. Invalid input must not silently
// become "now"; it fails and the caller skips the row.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// coerceQuantity parses a non-negative integer, defaulting to zero on any
// failure or negative input.
func coerceQuantity(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// coerceDecimal parses a non-negative decimal, defaulting to zero on any
// failure or negative input.
func coerceDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// classifyReadError splits reader failures into the two stream-level kinds:
// structural CSV problems vs underlying I/O failures.
func classifyReadError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Err: perr.Err}
	}
	return &StreamError{Err: err}
}
