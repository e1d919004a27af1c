package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campuscreatives/internal/observability"
)

// GetJSON attempts to get the key and unmarshal it into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with ttl.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b), ttl)
}

// Aside tries the store first and reports a hit. On a miss it calls fetch,
// which must populate dest, and stores the result with ttl. A failed cache
// write is logged and does not fail the call.
func Aside(ctx context.Context, s Store, key string, dest any, ttl time.Duration, fetch func() error) (bool, error) {
	found, err := GetJSON(ctx, s, key, dest)
	if err == nil && found {
		return true, nil
	}

	if err := fetch(); err != nil {
		return false, err
	}

	if err := SetJSON(ctx, s, key, dest, ttl); err != nil {
		observability.NewStoreLogger(s.Name()).LogError(ctx, "cache set", key, err)
	}
	return false, nil
}
