package server

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ecotrack-io/wastetrack/pkg/auth"
	"github.com/ecotrack-io/wastetrack/pkg/backfill"
	"github.com/ecotrack-io/wastetrack/pkg/config"
	"github.com/ecotrack-io/wastetrack/pkg/destination"
	"github.com/ecotrack-io/wastetrack/pkg/ingest"
	"github.com/ecotrack-io/wastetrack/pkg/query"
	"github.com/ecotrack-io/wastetrack/pkg/reactor"
	"github.com/ecotrack-io/wastetrack/pkg/store"
	"github.com/ecotrack-io/wastetrack/pkg/store/badger"
)

// Config holds server configuration.
type Config struct {
	MaxMemoryMB int64
	DataDir     string
	Port        string
	JWTSecret   []byte
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (Config, error) {
	maxMemoryMB := getEnvInt64("WASTETRACK_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)
	port := getPort()

	secret := os.Getenv("WASTETRACK_JWT_SECRET")
	if secret == "" {
		return Config{}, fmt.Errorf("WASTETRACK_JWT_SECRET is required")
	}

	// Ensure data directory exists
	dataDir := os.Getenv("WASTETRACK_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data/wastetrack"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return Config{}, fmt.Errorf("failed to create data directory: %w", err)
	}

	return Config{
		MaxMemoryMB: maxMemoryMB,
		DataDir:     dataDir,
		Port:        port,
		JWTSecret:   []byte(secret),
	}, nil
}

// InitializeStorage opens the BadgerDB backend.
func InitializeStorage(cfg Config) (store.Store, error) {
	log.Println("Initializing BadgerDB storage...")
	s, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB storage initialized successfully")
	return s, nil
}

// Handlers bundles every configured request handler.
type Handlers struct {
	Ingest   *ingest.Handler
	Query    *query.Handler
	Backfill *backfill.Handler
	Auditor  *backfill.Auditor
	Hub      *ingest.DashboardHub
	Auth     *auth.Authenticator
}

// InitializeHandlers creates and wires all request handlers.
func InitializeHandlers(s store.Store, cfg Config) Handlers {
	resolver := destination.NewResolver(s)
	r := reactor.New(s, s, resolver)
	engine := backfill.New(s, s, s, resolver)

	hub := ingest.NewDashboardHub()
	log.Println("WebSocket hub created for live dashboard updates")

	ingestHandler := ingest.NewHandler(s, r, hub)
	log.Println("Intake handler created with dimension cardinality protection")

	queryHandler := query.NewHandler(s)
	log.Println("Query handler created")

	backfillHandler := backfill.NewHandler(engine)
	log.Println("Backfill handler created (admin gated)")

	return Handlers{
		Ingest:   ingestHandler,
		Query:    queryHandler,
		Backfill: backfillHandler,
		Auditor:  backfill.NewAuditor(engine),
		Hub:      hub,
		Auth:     auth.New(cfg.JWTSecret),
	}
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getPort gets the server port from PORT environment variable or returns default.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}
