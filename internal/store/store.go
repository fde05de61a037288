// Package store defines the key-value document store the shop state is
// persisted to. Each key holds one JSON document and every Put is an
// independent write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// Well-known document keys.
const (
	KeyShopProfile  = "shopData"
	KeyProducts     = "products"
	KeyInventory    = "inventory"
	KeyTransactions = "transactions"
)

// Store is a key-value document store. Get returns domain.ErrNotFound for
// absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// LoadJSON decodes the document at key into v. It reports false when the
// key is absent and leaves v untouched.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("LoadJSON: %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("LoadJSON: decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("SaveJSON: encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("SaveJSON: %s: %w", key, err)
	}
	return nil
}
