package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ecotrack-io/wastetrack/pkg/aggregate"
	"github.com/ecotrack-io/wastetrack/pkg/event"
	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// Bounded conflict retry for delta transactions. Badger detects write-write
// conflicts at commit time; the transaction is simply re-run because the
// read-branch-write all lives inside the closure.
const (
	maxTxnRetries   = 5
	txnRetryBackoff = 10 * time.Millisecond
)

// ErrTxnRetriesExhausted is returned when a delta transaction keeps
// conflicting after the bounded retries. The aggregate is left in its
// last-committed state and the mutation is safe to redeliver.
var ErrTxnRetriesExhausted = errors.New("aggregate transaction retries exhausted")

// GetDaily returns the daily document, (nil, nil) when absent.
func (s *Store) GetDaily(ctx context.Context, clientID string, day event.DayID) (*aggregate.Aggregate, error) {
	return s.getAggregate(ctx, dailyKey(clientID, day))
}

// GetMonthly returns the monthly document, (nil, nil) when absent.
func (s *Store) GetMonthly(ctx context.Context, clientID string, month event.MonthID) (*aggregate.Aggregate, error) {
	return s.getAggregate(ctx, monthlyKey(clientID, month))
}

func (s *Store) getAggregate(ctx context.Context, key []byte) (*aggregate.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var agg *aggregate.Aggregate
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // zero activity, not an error
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded aggregate.Aggregate
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("failed to decode aggregate %q: %w", key, err)
			}
			agg = &decoded
			return nil
		})
	})
	return agg, err
}

// ApplyDeltas applies every delta to its daily and monthly documents inside
// ONE transaction. Each target is read first: absent documents are created
// with the delta as initial values, existing ones are incremented in place.
// The whole transaction retries on write conflict, bounded by maxTxnRetries.
//
// The mark is written in the same transaction, so an at-least-once delivery
// of the same mutation is a no-op on the second application.
func (s *Store) ApplyDeltas(ctx context.Context, mark store.Mark, deltas []*aggregate.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}

	apply := func(txn *badger.Txn) error {
		if mark.MutationID != "" {
			_, err := txn.Get(markKey(mark.MutationID))
			if err == nil {
				return nil // already applied, redelivery nets to a no-op
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}

		now := time.Now().UTC()
		for _, d := range deltas {
			if d == nil {
				continue
			}
			if err := applyToDocument(txn, dailyKey(d.ClientID, d.Day), d, now); err != nil {
				return err
			}
			if err := applyToDocument(txn, monthlyKey(d.ClientID, d.Month), d, now); err != nil {
				return err
			}
		}

		if mark.MutationID != "" {
			if err := txn.Set(markKey(mark.MutationID), nil); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	for attempt := 0; attempt <= maxTxnRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(txnRetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = s.db.Update(apply)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTxnRetriesExhausted, err)
}

// applyToDocument does the read-branch-write for one target document.
func applyToDocument(txn *badger.Txn, key []byte, d *aggregate.Delta, now time.Time) error {
	agg := aggregate.New()
	item, err := txn.Get(key)
	if err == nil {
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, agg)
		})
		if err != nil {
			return fmt.Errorf("failed to decode aggregate %q: %w", key, err)
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	agg.Apply(d)
	agg.UpdatedAt = now

	value, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate %q: %w", key, err)
	}
	return txn.Set(key, value)
}

// OverwriteDaily fully replaces the daily document ("set", not merge).
func (s *Store) OverwriteDaily(ctx context.Context, clientID string, day event.DayID, agg *aggregate.Aggregate) error {
	return s.overwrite(ctx, dailyKey(clientID, day), agg)
}

// OverwriteMonthly fully replaces the monthly document.
func (s *Store) OverwriteMonthly(ctx context.Context, clientID string, month event.MonthID, agg *aggregate.Aggregate) error {
	return s.overwrite(ctx, monthlyKey(clientID, month), agg)
}

func (s *Store) overwrite(ctx context.Context, key []byte, agg *aggregate.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// DeleteDaily removes the daily document.
func (s *Store) DeleteDaily(ctx context.Context, clientID string, day event.DayID) error {
	return s.deleteKey(ctx, dailyKey(clientID, day))
}

// DeleteMonthly removes the monthly document.
func (s *Store) DeleteMonthly(ctx context.Context, clientID string, month event.MonthID) error {
	return s.deleteKey(ctx, monthlyKey(clientID, month))
}

func (s *Store) deleteKey(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// ListDailyForMonth returns every existing daily document of the month.
// The day ids share the month as a key prefix, so this is one prefix walk.
func (s *Store) ListDailyForMonth(ctx context.Context, clientID string, month event.MonthID) (map[event.DayID]*aggregate.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make(map[event.DayID]*aggregate.Aggregate)
	prefix := []byte(string(prefixDaily) + clientID + "/" + string(month) + "-")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			day := event.DayID(item.Key()[len(prefixDaily)+len(clientID)+1:])
			err := item.Value(func(val []byte) error {
				var agg aggregate.Aggregate
				if err := json.Unmarshal(val, &agg); err != nil {
					return fmt.Errorf("failed to decode daily aggregate %s: %w", day, err)
				}
				results[day] = &agg
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListMonthlyForYear returns every existing monthly document of the year.
func (s *Store) ListMonthlyForYear(ctx context.Context, clientID string, year int) (map[event.MonthID]*aggregate.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make(map[event.MonthID]*aggregate.Aggregate)
	prefix := []byte(fmt.Sprintf("%s%s/%04d-", prefixMonthly, clientID, year))

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			month := event.MonthID(item.Key()[len(prefixMonthly)+len(clientID)+1:])
			err := item.Value(func(val []byte) error {
				var agg aggregate.Aggregate
				if err := json.Unmarshal(val, &agg); err != nil {
					return fmt.Errorf("failed to decode monthly aggregate %s: %w", month, err)
				}
				results[month] = &agg
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
