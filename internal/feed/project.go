// Package feed derives display state from a list of posts: the filtered and
// sorted feed, per-category totals and a user's dashboard numbers. Every
// function is pure and leaves its input untouched.
package feed

import (
	"sort"

	"campuscreatives/internal/models"
)

// Project filters posts by the normalized type of f (unless it is "all") and
// orders them by f.Sort. Sorting is stable, so equal keys keep input order.
// A type that names no category matches nothing. An unknown sort key orders
// newest first.
func Project(posts []models.Post, f models.FilterState) []models.Post {
	out := make([]models.Post, 0, len(posts))
	all := f.PostType == "" || f.PostType == models.FilterAll
	want, known := models.LookupPostType(f.PostType)
	if !all && !known {
		return out
	}

	for _, p := range posts {
		if all || p.Category() == want {
			out = append(out, p)
		}
	}

	var less func(a, b models.Post) bool
	switch f.Sort {
	case models.SortOldest:
		less = func(a, b models.Post) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case models.SortMostLiked:
		less = func(a, b models.Post) bool { return a.LikesCount > b.LikesCount }
	case models.SortMostCommented:
		less = func(a, b models.Post) bool { return a.CommentsCount > b.CommentsCount }
	default:
		less = func(a, b models.Post) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
