package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ecotrack-io/wastetrack/pkg/event"
)

// Put stores (or replaces) a record, maintaining the id index. A replace
// that moves the record in time deletes the old time-ordered key first.
func (s *Store) Put(ctx context.Context, e *event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	key := eventKey(e.ClientID, e.Timestamp, e.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		// Drop the previous time-ordered key if this record already exists
		// under a different timestamp or client.
		item, err := txn.Get(eventIndexKey(e.ID))
		if err == nil {
			var oldKey []byte
			if oldKey, err = item.ValueCopy(nil); err != nil {
				return err
			}
			if string(oldKey) != string(key) {
				if err := txn.Delete(oldKey); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(eventIndexKey(e.ID), key)
	})
}

// Get retrieves a record by id via the id index, (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var e *event.Event
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventIndexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		fullKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(fullKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // index points at a removed record, treat as absent
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded event.Event
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("failed to decode event %s: %w", id, err)
			}
			e = &decoded
			return nil
		})
	})
	return e, err
}

// Delete removes a record and its index entry; absent records are a no-op.
func (s *Store) Delete(ctx context.Context, e *event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(eventKey(e.ClientID, e.Timestamp, e.ID)); err != nil {
			return err
		}
		return txn.Delete(eventIndexKey(e.ID))
	})
}

// ScanRange returns the client's records inside [fromMillis, toMillis) in
// timestamp order. This is the backfill workhorse: one contiguous prefix
// walk thanks to the big-endian timestamp in the key.
func (s *Store) ScanRange(ctx context.Context, clientID string, fromMillis, toMillis int64) ([]*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scanResult struct {
		events []*event.Event
		err    error
	}
	done := make(chan scanResult, 1)

	go func() {
		var res scanResult
		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 100
			opts.Prefix = eventPrefix(clientID)

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			start := eventKey(clientID, fromMillis, "")
			for it.Seek(start); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				item := it.Item()
				if eventTimestamp(item.Key(), clientID) >= toMillis {
					break // keys are time-ordered, nothing further can match
				}

				err := item.Value(func(val []byte) error {
					var e event.Event
					if err := json.Unmarshal(val, &e); err != nil {
						return fmt.Errorf("failed to decode event: %w", err)
					}
					res.events = append(res.events, &e)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		done <- res
	}()

	select {
	case res := <-done:
		return res.events, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("scan cancelled: %w", ctx.Err())
	}
}
