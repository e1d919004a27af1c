// Package repository provides the client's data access over the REST API,
// with the fallback data and offline queue used when the API is unreachable.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"campuscreatives/internal/api"
	"campuscreatives/internal/models"
)

// Source tells the caller where returned data came from.
type Source string

// Data sources.
const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceOffline  Source = "offline"
)

// Degraded reports whether the data did not come from the server just now.
func (s Source) Degraded() bool {
	return s == SourceFallback || s == SourceOffline
}

// Transport performs API calls. *api.Client implements it.
type Transport interface {
	Do(ctx context.Context, req api.Request, out any) error
}

// Session exposes the signed-in state repositories need.
type Session interface {
	IsAuthenticated(ctx context.Context) bool
	CurrentUser(ctx context.Context) *models.User
}

// UserSession can also edit the stored user record.
type UserSession interface {
	Session
	UpdateUser(ctx context.Context, fn func(u *models.User)) (*models.User, error)
}

const (
	postsPath   = "/posts/"
	profilePath = "/profiles/me/"
)

func postPath(id models.PostID) string {
	return postsPath + url.PathEscape(id.String()) + "/"
}

func requireAuth(ctx context.Context, s Session, action string) error {
	if !s.IsAuthenticated(ctx) {
		return models.NewUnauthenticatedError(fmt.Sprintf("Please login to %s", action))
	}
	return nil
}

// pagedList accepts both a bare JSON array and a paginated {"results": [...]} envelope.
func pagedList[T any](raw json.RawMessage) ([]T, error) {
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, models.NewNetworkError(fmt.Errorf("unexpected list response: %w", err))
	}
	return page.Results, nil
}
