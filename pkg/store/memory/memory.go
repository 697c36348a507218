package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Store keeps every collection in memory. Data is lost on restart.
// Useful for testing and development.
type Store struct {
	mu sync.RWMutex

	events    map[string]*event.Event         // id -> record
	daily     map[string]*aggregate.Aggregate // client/day -> document
	monthly   map[string]*aggregate.Aggregate // client/month -> document
	marks     map[string]bool                 // mutation id -> applied
	clients   map[string]*store.ClientConfig  // client id -> config
	companies map[string]*store.CompanyConfig // company id -> config
}

// New creates an in-memory store.
func New() *Store {
	return &Store{
		events:    make(map[string]*event.Event),
		daily:     make(map[string]*aggregate.Aggregate),
		monthly:   make(map[string]*aggregate.Aggregate),
		marks:     make(map[string]bool),
		clients:   make(map[string]*store.ClientConfig),
		companies: make(map[string]*store.CompanyConfig),
	}
}

func dailyKey(clientID string, day event.DayID) string       { return clientID + "/" + string(day) }
func monthlyKey(clientID string, month event.MonthID) string { return clientID + "/" + string(month) }

// Put stores (or replaces) a record.
func (s *Store) Put(ctx context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

// Get retrieves a record by id, (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// Delete removes a record; absent records are a no-op.
func (s *Store) Delete(ctx context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, e.ID)
	return nil
}

// ScanRange returns the client's records inside [fromMillis, toMillis),
// ordered by timestamp.
func (s *Store) ScanRange(ctx context.Context, clientID string, fromMillis, toMillis int64) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*event.Event
	for _, e := range s.events {
		if e.ClientID != clientID {
			continue
		}
		if e.Timestamp < fromMillis || e.Timestamp >= toMillis {
			continue
		}
		cp := *e
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Timestamp < results[j].Timestamp })
	return results, nil
}

// GetDaily returns the daily document, (nil, nil) when absent.
func (s *Store) GetDaily(ctx context.Context, clientID string, day event.DayID) (*aggregate.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daily[dailyKey(clientID, day)].Clone(), nil
}

// GetMonthly returns the monthly document, (nil, nil) when absent.
func (s *Store) GetMonthly(ctx context.Context, clientID string, month event.MonthID) (*aggregate.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monthly[monthlyKey(clientID, month)].Clone(), nil
}

// ApplyDeltas applies every delta to its daily and monthly documents under
// one lock, creating documents on first touch. The mark prevents a second
// application of the same mutation.
func (s *Store) ApplyDeltas(ctx context.Context, mark store.Mark, deltas []*aggregate.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mark.MutationID != "" && s.marks[mark.MutationID] {
		return nil // already applied
	}

	now := time.Now().UTC()
	for _, d := range deltas {
		if d == nil {
			continue
		}
		dk := dailyKey(d.ClientID, d.Day)
		day := s.daily[dk]
		if day == nil {
			day = aggregate.New()
			s.daily[dk] = day
		}
		day.Apply(d)
		day.UpdatedAt = now

		mk := monthlyKey(d.ClientID, d.Month)
		month := s.monthly[mk]
		if month == nil {
			month = aggregate.New()
			s.monthly[mk] = month
		}
		month.Apply(d)
		month.UpdatedAt = now
	}

	if mark.MutationID != "" {
		s.marks[mark.MutationID] = true
	}
	return nil
}

// OverwriteDaily fully replaces the daily document.
func (s *Store) OverwriteDaily(ctx context.Context, clientID string, day event.DayID, agg *aggregate.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[dailyKey(clientID, day)] = agg.Clone()
	return nil
}

// OverwriteMonthly fully replaces the monthly document.
func (s *Store) OverwriteMonthly(ctx context.Context, clientID string, month event.MonthID, agg *aggregate.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly[monthlyKey(clientID, month)] = agg.Clone()
	return nil
}

// DeleteDaily removes the daily document.
func (s *Store) DeleteDaily(ctx context.Context, clientID string, day event.DayID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.daily, dailyKey(clientID, day))
	return nil
}

// DeleteMonthly removes the monthly document.
func (s *Store) DeleteMonthly(ctx context.Context, clientID string, month event.MonthID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monthly, monthlyKey(clientID, month))
	return nil
}

// ListDailyForMonth returns every existing daily document of the month.
func (s *Store) ListDailyForMonth(ctx context.Context, clientID string, month event.MonthID) (map[event.DayID]*aggregate.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[event.DayID]*aggregate.Aggregate)
	days, err := month.Days()
	if err != nil {
		return nil, err
	}
	for _, day := range days {
		if agg, ok := s.daily[dailyKey(clientID, day)]; ok {
			results[day] = agg.Clone()
		}
	}
	return results, nil
}

// ListMonthlyForYear returns every existing monthly document of the year.
func (s *Store) ListMonthlyForYear(ctx context.Context, clientID string, year int) (map[event.MonthID]*aggregate.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[event.MonthID]*aggregate.Aggregate)
	for m := time.January; m <= time.December; m++ {
		month := event.MonthIDOf(year, m)
		if agg, ok := s.monthly[monthlyKey(clientID, month)]; ok {
			results[month] = agg.Clone()
		}
	}
	return results, nil
}

// GetClient returns the tenant config, (nil, nil) when absent.
func (s *Store) GetClient(ctx context.Context, clientID string) (*store.ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.clients[clientID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

// PutClient stores the tenant config.
func (s *Store) PutClient(ctx context.Context, cfg *store.ClientConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.clients[cfg.ClientID] = &cp
	return nil
}

// ListClients returns every tenant config.
func (s *Store) ListClients(ctx context.Context) ([]*store.ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*store.ClientConfig, 0, len(s.clients))
	for _, cfg := range s.clients {
		cp := *cfg
		results = append(results, &cp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ClientID < results[j].ClientID })
	return results, nil
}

// GetCompany returns the collector-company config, (nil, nil) when absent.
func (s *Store) GetCompany(ctx context.Context, companyID string) (*store.CompanyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.companies[companyID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

// PutCompany stores the collector-company config.
func (s *Store) PutCompany(ctx context.Context, cfg *store.CompanyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.companies[cfg.CompanyID] = &cp
	return nil
}

// Stats returns collection counts.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &store.Stats{
		TotalEvents:      uint64(len(s.events)),
		TotalDailyDocs:   uint64(len(s.daily)),
		TotalMonthlyDocs: uint64(len(s.monthly)),
	}, nil
}

// Close is a no-op for the memory backend.
func (s *Store) Close() error {
	return nil
}

var _ store.Store = (*Store)(nil)
