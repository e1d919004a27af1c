package models

import (
	"fmt"
	"strings"
)

// SortKey orders a feed.
type SortKey string

// Feed orderings.
const (
	SortNewest        SortKey = "newest"
	SortOldest        SortKey = "oldest"
	SortMostLiked     SortKey = "most_liked"
	SortMostCommented SortKey = "most_commented"
)

// FilterAll disables the post type filter.
const FilterAll = "all"

// FilterState is the feed configuration chosen by the user.
type FilterState struct {
	PostType string  `json:"post_type"`
	Sort     SortKey `json:"sort"`
}

// DefaultFilter shows every post, newest first.
func DefaultFilter() FilterState {
	return FilterState{PostType: FilterAll, Sort: SortNewest}
}

// ParseFilter validates user-supplied filter values. Empty values take the defaults
// and the legacy "photo" type is accepted as photography.
func ParseFilter(postType, sort string) (FilterState, error) {
	f := DefaultFilter()

	postType = strings.ToLower(strings.TrimSpace(postType))
	switch {
	case postType == "" || postType == FilterAll:
	default:
		t, ok := LookupPostType(postType)
		if !ok {
			return f, NewValidationError(fmt.Sprintf("unknown post type %q", postType))
		}
		f.PostType = string(t)
	}

	switch s := SortKey(strings.ToLower(strings.TrimSpace(sort))); s {
	case "":
	case SortNewest, SortOldest, SortMostLiked, SortMostCommented:
		f.Sort = s
	default:
		return f, NewValidationError(fmt.Sprintf("unknown sort %q", sort))
	}
	return f, nil
}

// Label describes the filter the way the feed header shows it.
func (f FilterState) Label() string {
	types := "of all types"
	if f.PostType != "" && f.PostType != FilterAll {
		types = fmt.Sprintf("of type %q", PostType(f.PostType).Label())
	}
	var order string
	switch f.Sort {
	case SortOldest:
		order = "oldest first"
	case SortMostLiked:
		order = "most liked"
	case SortMostCommented:
		order = "most comments"
	default:
		order = "newest first"
	}
	return fmt.Sprintf("Showing posts %s sorted by %s", types, order)
}
