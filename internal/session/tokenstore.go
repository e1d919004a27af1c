// Package session holds the signed-in state of the client: the token pair,
// the user record and the refresh protocol.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"
)

// sessionKeys are removed on logout.
var sessionKeys = []string{store.KeyAccessToken, store.KeyRefreshToken, store.KeyUser, store.KeyIsLoggedIn}

// TokenStore writes session values to a primary and an optional secondary
// backend and reads them back preferring the primary.
type TokenStore struct {
	backends []store.Store
}

// NewTokenStore returns a TokenStore over primary and, when non-nil, secondary.
func NewTokenStore(primary, secondary store.Store) *TokenStore {
	ts := &TokenStore{backends: []store.Store{primary}}
	if secondary != nil {
		ts.backends = append(ts.backends, secondary)
	}
	return ts
}

// Primary returns the preferred backend.
func (t *TokenStore) Primary() store.Store {
	return t.backends[0]
}

// Save stores both tokens.
func (t *TokenStore) Save(ctx context.Context, tokens models.Tokens) error {
	if err := t.write(ctx, store.KeyAccessToken, tokens.Access); err != nil {
		return err
	}
	return t.write(ctx, store.KeyRefreshToken, tokens.Refresh)
}

// SetAccess replaces the access token.
func (t *TokenStore) SetAccess(ctx context.Context, token string) error {
	return t.write(ctx, store.KeyAccessToken, token)
}

// SetRefresh replaces the refresh token.
func (t *TokenStore) SetRefresh(ctx context.Context, token string) error {
	return t.write(ctx, store.KeyRefreshToken, token)
}

// Access returns the access token or "".
func (t *TokenStore) Access(ctx context.Context) string {
	return t.read(ctx, store.KeyAccessToken)
}

// Refresh returns the refresh token or "".
func (t *TokenStore) Refresh(ctx context.Context) string {
	return t.read(ctx, store.KeyRefreshToken)
}

// Clear removes every session key from every backend.
func (t *TokenStore) Clear(ctx context.Context) error {
	var errs []error
	for _, b := range t.backends {
		if err := b.Delete(ctx, sessionKeys...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// write succeeds when at least one backend accepted the value.
func (t *TokenStore) write(ctx context.Context, key, value string) error {
	var errs []error
	for _, b := range t.backends {
		if err := b.Set(ctx, key, value, 0); err != nil {
			observability.Logger.WarnContext(ctx, "token write failed",
				slog.String("backend", b.Name()),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(t.backends) {
		return fmt.Errorf("store %s: %w", key, errors.Join(errs...))
	}
	return nil
}

func (t *TokenStore) read(ctx context.Context, key string) string {
	for _, b := range t.backends {
		v, err := b.Get(ctx, key)
		if err == nil && v != "" {
			return v
		}
	}
	return ""
}
