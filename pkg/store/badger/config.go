package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ecotrack-io/wastetrack/pkg/store"
)

// GetClient returns the tenant config, (nil, nil) when absent.
func (s *Store) GetClient(ctx context.Context, clientID string) (*store.ClientConfig, error) {
	var cfg *store.ClientConfig
	err := s.getJSON(ctx, clientCfgKey(clientID), &cfg)
	return cfg, err
}

// PutClient stores the tenant config.
func (s *Store) PutClient(ctx context.Context, cfg *store.ClientConfig) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	return s.putJSON(ctx, clientCfgKey(cfg.ClientID), cfg)
}

// ListClients returns every tenant config, ordered by client id.
func (s *Store) ListClients(ctx context.Context) ([]*store.ClientConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []*store.ClientConfig
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixClientCfg

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var cfg store.ClientConfig
				if err := json.Unmarshal(val, &cfg); err != nil {
					return fmt.Errorf("failed to decode client config: %w", err)
				}
				results = append(results, &cfg)
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

// GetCompany returns the collector-company config, (nil, nil) when absent.
func (s *Store) GetCompany(ctx context.Context, companyID string) (*store.CompanyConfig, error) {
	var cfg *store.CompanyConfig
	err := s.getJSON(ctx, companyCfgKey(companyID), &cfg)
	return cfg, err
}

// PutCompany stores the collector-company config.
func (s *Store) PutCompany(ctx context.Context, cfg *store.CompanyConfig) error {
	if cfg.CompanyID == "" {
		return fmt.Errorf("company id is required")
	}
	return s.putJSON(ctx, companyCfgKey(cfg.CompanyID), cfg)
}

// getJSON decodes the value at key into out; absent keys leave out nil.
func (s *Store) getJSON(ctx context.Context, key []byte, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

func (s *Store) putJSON(ctx context.Context, key []byte, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}
