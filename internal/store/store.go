// Package store provides the key-value persistence the client keeps its
// session, liked posts and offline data in. Components receive a Store
// explicitly so tests can substitute any backend.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is a string-valued key-value store. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key. A zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Keys persisted by the client. The names are shared with existing browser
// sessions and must not change.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyIsLoggedIn   = "isLoggedIn"
	KeyPosts        = "posts"
	KeyLikedPosts   = "likedPosts"
)

const commentsKeyPrefix = "comments:"

// CommentsTTL bounds how long a fetched comment list is reused.
const CommentsTTL = 2 * time.Minute

// CommentsKey is the cache key of a post's comment list.
func CommentsKey(postID string) string {
	return commentsKeyPrefix + postID
}
