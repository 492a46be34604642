/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/analytics/*   Aggregations and the refresh upload
  /api/health        Liveness
  /                  API landing page

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/revenue", h.GetRevenue)
			r.Get("/customers", h.GetCustomerOrderStats)
			r.Get("/profit-margin", h.GetProfitMargin)
			r.Post("/refresh", h.RefreshData)
		})
	})

	// Landing page
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Sales Analytics API</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Sales Analytics API</h1>
<p>API is running.</p>
<h2>Endpoints</h2>
<ul>
<li><code>GET /api/analytics/revenue?from=&amp;to=&amp;revenue_type=</code> - Revenue by type</li>
<li><code>GET /api/analytics/customers?from=&amp;to=</code> - Customer/order stats</li>
<li><code>GET /api/analytics/profit-margin?from=&amp;to=</code> - Profit margin by product</li>
<li><code>POST /api/analytics/refresh</code> - Upload CSV (multipart field "file")</li>
<li><a href="/api/health">/api/health</a> - Liveness</li>
</ul>
</body>
</html>`))
	})

	return r
}
