package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ecotrack-io/wastetrack/pkg/server"
	"github.com/ecotrack-io/wastetrack/pkg/server/monitor"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("🚀 Starting WasteTrack Server...")

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	log.Printf("⚙️  Configuration: Memory limit = %d MB, Data dir = %s, Port = %s",
		cfg.MaxMemoryMB, cfg.DataDir, cfg.Port)

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()

	handlers := server.InitializeHandlers(store, cfg)
	auditMonitor := &monitor.AuditMonitor{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		handlers.Hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for live dashboard updates")

	// Nightly aggregate drift audit
	stopAudit := make(chan bool)
	wg.Add(1)
	go server.RunAudit(handlers.Auditor, auditMonitor, stopAudit, &wg)

	// BadgerDB garbage collection (reclaims disk space)
	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(store, stopGC, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, handlers, store, auditMonitor, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   POST /v1/records                         - Ingest waste records")
		log.Println("   GET  /v1/aggregates/{client}/daily/{d}   - Daily aggregate")
		log.Println("   GET  /v1/aggregates/{client}/monthly/{m} - Monthly aggregate")
		log.Println("   POST /v1/backfill/day                    - Recompute a day (admin)")
		log.Println("   GET  /metrics                            - Prometheus endpoint")
		log.Println("✅ Server ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// CRITICAL: Cancel context FIRST to stop goroutines
	// Must be called before wg.Wait() or we get deadlock!
	log.Println("⏸️  Stopping background tasks...")
	cancel()
	close(stopAudit)
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	// Wait for background goroutines to finish
	log.Println("⏳ Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 WasteTrack server exited cleanly")
}
