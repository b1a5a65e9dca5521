// Package localstate is the shopper's persisted key-value blob: the anonymous cart,
// the anonymous wishlist, the session and cached product snapshots.
//
// Several backends share the IStore contract. Writes are last-write-wins; two
// processes sharing one profile can overwrite each other.
package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	KeyCart            = "cart"
	KeyWishlist        = "wishlist"
	KeyWishlistDetails = "wishlistDetails"
	KeyUserSession     = "userSession"
	KeyUserID          = "userId"
)

// ProductKey is where a product detail snapshot is cached for offline fallback.
func ProductKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

type IStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GetJSON decodes the value at key into v. It reports false when the key is absent.
func GetJSON(ctx context.Context, s IStore, key string, v any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, s IStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
