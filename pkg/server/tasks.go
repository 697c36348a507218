package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/backfill"
	"github.com/ecotrack-io/wastetrack/pkg/config"
	"github.com/ecotrack-io/wastetrack/pkg/server/monitor"
	"github.com/ecotrack-io/wastetrack/pkg/store"
	"github.com/ecotrack-io/wastetrack/pkg/store/badger"
)

// RunAudit runs the aggregate drift audit on a schedule. Each run verifies
// that every monthly document equals the deep sum of its daily documents
// and recomputes the ones that drifted.
func RunAudit(auditor *backfill.Auditor, auditMonitor *monitor.AuditMonitor, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.AuditInterval)
	defer ticker.Stop()

	// Helper function to run the audit with retry and exponential backoff
	runWithRetry := func(ctx context.Context, isInitial bool) {
		maxRetries := 3
		baseDelay := 30 * time.Second

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := baseDelay * time.Duration(1<<(attempt-1)) // Exponential backoff: 30s, 60s, 120s
				log.Printf("Retrying audit in %v (attempt %d/%d)...", delay, attempt+1, maxRetries+1)
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			start := time.Now()
			drifted, err := auditor.Run(ctx)

			if err == nil {
				auditMonitor.RecordSuccess(drifted)
				if isInitial {
					log.Printf("Initial audit completed in %v (%d drifted months repaired)", time.Since(start).Round(time.Millisecond), drifted)
				} else {
					log.Printf("Audit completed in %v (%d drifted months repaired)", time.Since(start).Round(time.Millisecond), drifted)
				}
				return
			}

			// Failure - record and log
			auditMonitor.RecordFailure(err)
			log.Printf("Audit failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err)

			// Check if we should alert
			status := auditMonitor.Status()
			if status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: Audit has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Audit failed after %d attempts, will retry on next schedule", maxRetries+1)
	}

	// Run once on startup (non-blocking)
	go func() {
		log.Println("Running initial aggregate drift audit...")
		runWithRetry(context.Background(), true)
	}()

	for {
		select {
		case <-ticker.C:
			log.Println("Scheduled audit started...")
			runWithRetry(context.Background(), false)
		case <-stop:
			log.Println("Stopping audit scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim disk space.
// BadgerDB uses LSM trees which accumulate deleted data in value log.
// GC is essential to prevent unbounded disk growth.
func RunBadgerGC(s store.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	// Type assert to get underlying BadgerDB
	badgerStore, ok := s.(*badger.Store)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			// Run GC with 0.5 discard ratio (reclaim space if 50% of file is garbage)
			log.Println("Running BadgerDB garbage collection...")
			start := time.Now()

			// RunValueLogGC runs until no more garbage can be collected
			// We limit to 1 iteration per tick to avoid blocking
			err := badgerStore.RunGC(0.5)
			if err != nil {
				// Not an error if no GC was needed
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
