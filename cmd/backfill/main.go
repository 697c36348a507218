// Operator CLI: recompute daily and monthly aggregates straight against the
// data directory, without going through the HTTP API. The server must not be
// running against the same directory (BadgerDB holds an exclusive lock).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/backfill"
	"github.com/ecotrack-io/wastetrack/pkg/destination"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/store/badger"
)

func main() {
	dataDir := flag.String("data-dir", "./data/wastetrack", "BadgerDB data directory")
	clientID := flag.String("client-id", "", "Optional: backfill only one client. If empty, backfills all clients.")
	from := flag.String("from", "", "Start date (YYYY-MM-DD). Required.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD), inclusive. Defaults to the start date.")
	fromEvents := flag.Bool("from-events", false, "Rebuild whole months from raw records instead of folding daily documents")
	flag.Parse()

	startDay, err := event.ParseDayID(strings.TrimSpace(*from))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from date: %v\n", err)
		os.Exit(1)
	}
	endDay := startDay
	if strings.TrimSpace(*to) != "" {
		endDay, err = event.ParseDayID(strings.TrimSpace(*to))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to date: %v\n", err)
			os.Exit(1)
		}
	}
	if endDay < startDay {
		fmt.Fprintln(os.Stderr, "end date is before start date")
		os.Exit(1)
	}

	s, err := badger.New(badger.Config{Path: *dataDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store at %s: %v\n", *dataDir, err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()
	engine := backfill.New(s, s, s, destination.NewResolver(s))

	clients, err := clientIDs(ctx, s, strings.TrimSpace(*clientID))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(clients) == 0 {
		fmt.Fprintln(os.Stderr, "no clients found to backfill")
		return
	}

	for _, cid := range clients {
		if *fromEvents {
			if err := recomputeMonths(ctx, engine, cid, startDay, endDay); err != nil {
				fmt.Fprintf(os.Stderr, "client %s backfill failed: %v\n", cid, err)
				continue
			}
		} else {
			if err := recomputeDays(ctx, engine, cid, startDay, endDay); err != nil {
				fmt.Fprintf(os.Stderr, "client %s backfill failed: %v\n", cid, err)
				continue
			}
		}
	}

	fmt.Println("Backfill complete")
}

// clientIDs resolves the target tenant list: a single requested client or
// every configured one.
func clientIDs(ctx context.Context, s *badger.Store, requested string) ([]string, error) {
	if requested != "" {
		return []string{requested}, nil
	}
	configs, err := s.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	ids := make([]string, 0, len(configs))
	for _, cfg := range configs {
		ids = append(ids, cfg.ClientID)
	}
	return ids, nil
}

// recomputeDays walks the inclusive date range day by day. Each day
// recompute also refreshes its containing month.
func recomputeDays(ctx context.Context, engine *backfill.Engine, clientID string, from, to event.DayID) error {
	cur, err := time.ParseInLocation("2006-01-02", string(from), time.UTC)
	if err != nil {
		return err
	}
	end, err := time.ParseInLocation("2006-01-02", string(to), time.UTC)
	if err != nil {
		return err
	}

	for ; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		day := event.DayID(cur.Format("2006-01-02"))
		fmt.Printf("Recomputing client=%s day=%s\n", clientID, day)
		if err := engine.RecomputeDay(ctx, clientID, day); err != nil {
			return err
		}
	}
	return nil
}

// recomputeMonths rebuilds every month the inclusive date range touches
// from raw records.
func recomputeMonths(ctx context.Context, engine *backfill.Engine, clientID string, from, to event.DayID) error {
	seen := map[event.MonthID]bool{}
	cur, err := time.ParseInLocation("2006-01-02", string(from), time.UTC)
	if err != nil {
		return err
	}
	end, err := time.ParseInLocation("2006-01-02", string(to), time.UTC)
	if err != nil {
		return err
	}

	for ; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		month := event.MonthIDOf(cur.Year(), cur.Month())
		if seen[month] {
			continue
		}
		seen[month] = true
		fmt.Printf("Recomputing client=%s month=%s from raw records\n", clientID, month)
		if err := engine.RecomputeMonthFromEvents(ctx, clientID, month); err != nil {
			return err
		}
	}
	return nil
}
