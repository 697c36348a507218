package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ecotrack-io/wastetrack/pkg/auth"
	"github.com/ecotrack-io/wastetrack/pkg/config"
	"github.com/ecotrack-io/wastetrack/pkg/httpx"
	"github.com/ecotrack-io/wastetrack/pkg/metrics"
	"github.com/ecotrack-io/wastetrack/pkg/server/monitor"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Uptime  string              `json:"uptime"`
	Audit   monitor.AuditStatus `json:"audit"`
}

// handleHealth returns service health status.
func handleHealth(auditMonitor *monitor.AuditMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auditHealthy := auditMonitor.IsHealthy()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !auditHealthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:  overallStatus,
			Version: "1.0.0",
			Uptime:  time.Since(startTime).String(),
			Audit:   auditMonitor.Status(),
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStats returns storage collection counts and size.
func handleStats(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.QueryStatsTimeout)
		defer cancel()

		stats, err := s.Stats(ctx)
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, stats)
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	h Handlers,
	s store.Store,
	auditMonitor *monitor.AuditMonitor,
	port string,
) {
	// CORS middleware for API access
	router.Use(corsMiddleware(port))

	// API routes
	api := router.PathPrefix("/v1").Subrouter()
	api.Use(metrics.Middleware("api"))

	// Record intake and listing
	api.HandleFunc("/records", h.Ingest.HandleCreate).Methods("POST")
	api.HandleFunc("/records", h.Query.HandleListRecords).Methods("GET")
	api.HandleFunc("/records/{id}", h.Ingest.HandleUpdate).Methods("PUT")
	api.HandleFunc("/records/{id}", h.Ingest.HandleDelete).Methods("DELETE")

	// Aggregate reads
	api.HandleFunc("/aggregates/{clientId}/daily/{date}", h.Query.HandleGetDaily).Methods("GET")
	api.HandleFunc("/aggregates/{clientId}/daily", h.Query.HandleListDaily).Methods("GET")
	api.HandleFunc("/aggregates/{clientId}/monthly/{month}", h.Query.HandleGetMonthly).Methods("GET")
	api.HandleFunc("/aggregates/{clientId}/monthly", h.Query.HandleListMonthly).Methods("GET")

	// Tenant and collector-company configuration
	api.HandleFunc("/config/clients", h.Query.HandleListClients).Methods("GET")
	api.HandleFunc("/config/clients/{clientId}", h.Query.HandleGetClientConfig).Methods("GET")
	api.HandleFunc("/config/clients/{clientId}", h.Query.HandlePutClientConfig).Methods("PUT")
	api.HandleFunc("/config/companies/{companyId}", h.Query.HandleGetCompanyConfig).Methods("GET")
	api.HandleFunc("/config/companies/{companyId}", h.Query.HandlePutCompanyConfig).Methods("PUT")

	// Backfill operations require an admin token
	admin := api.PathPrefix("/backfill").Subrouter()
	admin.Use(h.Auth.Require(auth.RoleAdmin))
	admin.HandleFunc("/day", h.Backfill.HandleRecomputeDay).Methods("POST")
	admin.HandleFunc("/month", h.Backfill.HandleRecomputeMonth).Methods("POST")
	admin.HandleFunc("/month/from-events", h.Backfill.HandleRecomputeMonthFromEvents).Methods("POST")

	// Health and stats
	api.HandleFunc("/stats", handleStats(s)).Methods("GET")
	api.HandleFunc("/health", handleHealth(auditMonitor)).Methods("GET")

	// WebSocket for live dashboard updates
	api.HandleFunc("/ws", h.Ingest.HandleWebSocket(h.Hub)).Methods("GET")

	// Prometheus scrape endpoint
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Allow localhost origins for local development
			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			// Check if origin is allowed
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			// Only set CORS headers for allowed origins
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
