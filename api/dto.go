/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model (exact decimals) from the external contract
  (plain JSON numbers): every money value crosses the boundary via
  Decimal.Float64.

NAMING CONVENTION:
  Aggregation fields use camelCase names consumed by dashboards
  (totalRevenue, averageOrderValue, profitMargin); operational fields use
  snake_case.

SEE ALSO:
  - handlers.go: fills these from engine results
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/sales-analytics/analytics"
)

// CustomerOrderStatsDTO mirrors analytics.CustomerOrderStats.
type CustomerOrderStatsDTO struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	TotalOrders       int64   `json:"totalOrders"`
	TotalCustomers    int64   `json:"totalCustomers"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

// ProductMarginDTO mirrors analytics.ProductMargin.
type ProductMarginDTO struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalCost    float64 `json:"totalCost"`
	ProfitMargin float64 `json:"profitMargin"`
}

// SkippedRowDTO reports one dropped ingestion row.
type SkippedRowDTO struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// RefreshResponse reports the outcome of a full-replace refresh.
type RefreshResponse struct {
	Deleted  int64           `json:"deleted"`
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Skips    []SkippedRowDTO `json:"skips,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// toFloat converts an exact decimal into the JSON-facing number.
func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toRevenueDTO(rev analytics.RevenueByType) map[string]float64 {
	out := make(map[string]float64, len(rev))
	for key, total := range rev {
		out[key] = toFloat(total)
	}
	return out
}

func toStatsDTO(stats analytics.CustomerOrderStats) CustomerOrderStatsDTO {
	return CustomerOrderStatsDTO{
		TotalRevenue:      toFloat(stats.TotalRevenue),
		TotalOrders:       stats.TotalOrders,
		TotalCustomers:    stats.TotalCustomers,
		AverageOrderValue: toFloat(stats.AverageOrderValue),
	}
}

func toMarginDTO(margins map[string]analytics.ProductMargin) map[string]ProductMarginDTO {
	out := make(map[string]ProductMarginDTO, len(margins))
	for name, m := range margins {
		out[name] = ProductMarginDTO{
			TotalRevenue: toFloat(m.TotalRevenue),
			TotalCost:    toFloat(m.TotalCost),
			ProfitMargin: toFloat(m.ProfitMargin),
		}
	}
	return out
}

func toRefreshResponse(deleted int64, summary analytics.IngestSummary) RefreshResponse {
	resp := RefreshResponse{
		Deleted:  deleted,
		Inserted: summary.Inserted,
		Skipped:  summary.Skipped,
	}
	for _, s := range summary.Skips {
		resp.Skips = append(resp.Skips, SkippedRowDTO{Line: s.Line, Reason: s.Reason})
	}
	return resp
}
