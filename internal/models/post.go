// Package models contains data structures for the client's domain models.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostType is a canonical display category.
type PostType string

// Canonical post categories.
const (
	PostTypeArt         PostType = "art"
	PostTypeWriting     PostType = "writing"
	PostTypePhotography PostType = "photography"
	PostTypeMusic       PostType = "music"
	PostTypeOther       PostType = "other"

	// postTypePhotoAlias is the legacy spelling of photography still found in old posts.
	postTypePhotoAlias = "photo"
)

// PostTypes lists the canonical categories in display order.
var PostTypes = []PostType{PostTypeArt, PostTypeWriting, PostTypePhotography, PostTypeMusic, PostTypeOther}

// NormalizePostType maps a raw post_type value onto a canonical category.
// The legacy "photo" becomes photography; unknown values become other.
func NormalizePostType(raw string) PostType {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case postTypePhotoAlias:
		return PostTypePhotography
	case string(PostTypeArt), string(PostTypeWriting), string(PostTypePhotography), string(PostTypeMusic), string(PostTypeOther):
		return PostType(v)
	default:
		return PostTypeOther
	}
}

// LookupPostType is NormalizePostType for values that must name a category:
// it reports false instead of falling back to other.
func LookupPostType(raw string) (PostType, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == postTypePhotoAlias {
		return PostTypePhotography, true
	}
	for _, t := range PostTypes {
		if string(t) == v {
			return t, true
		}
	}
	return "", false
}

// Label returns the human-readable category name.
func (t PostType) Label() string {
	switch NormalizePostType(string(t)) {
	case PostTypeArt:
		return "Art"
	case PostTypeWriting:
		return "Writing"
	case PostTypePhotography:
		return "Photography"
	case PostTypeMusic:
		return "Music"
	default:
		return "Other"
	}
}

// PostID identifies a post. Server ids are integers and offline posts carry
// client-assigned UUIDs, so both are held as strings.
type PostID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *PostID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PostID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("post id must be a number or string: %w", err)
	}
	*id = PostID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id PostID) String() string {
	return string(id)
}

// Post is the client's view of a post as returned by the API.
type Post struct {
	ID            PostID    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	PostType      PostType  `json:"post_type"`
	Author        *int64    `json:"author,omitempty"`
	AuthorName    string    `json:"author_name"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
	Image         *string   `json:"image"`
	Tags          []string  `json:"tags,omitempty"`
	Comments      []Comment `json:"comments,omitempty"`
	// Offline marks posts queued locally because the server could not be reached.
	Offline bool `json:"offline,omitempty"`
}

// UnmarshalJSON decodes a post and restores its invariants: counts are never
// negative and tags have set semantics. Tags may arrive as a list or as the
// comma-separated string the create form used.
func (p *Post) UnmarshalJSON(data []byte) error {
	type rawPost Post
	aux := struct {
		*rawPost
		Tags json.RawMessage `json:"tags,omitempty"`
	}{rawPost: (*rawPost)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.Tags = nil
	if len(aux.Tags) > 0 && !bytes.Equal(aux.Tags, []byte("null")) {
		var list []string
		if err := json.Unmarshal(aux.Tags, &list); err != nil {
			var joined string
			if err := json.Unmarshal(aux.Tags, &joined); err != nil {
				return fmt.Errorf("tags must be a list or a string: %w", err)
			}
			list = strings.Split(joined, ",")
		}
		p.Tags = NormalizeTags(list)
	}
	p.clampCounts()
	return nil
}

func (p *Post) clampCounts() {
	if p.LikesCount < 0 {
		p.LikesCount = 0
	}
	if p.CommentsCount < 0 {
		p.CommentsCount = 0
	}
}

// Category returns the normalized display category of the post.
func (p Post) Category() PostType {
	return NormalizePostType(string(p.PostType))
}

// AddLikes adjusts the like count by delta, never going below zero.
func (p *Post) AddLikes(delta int) {
	p.LikesCount += delta
	p.clampCounts()
}

// NormalizeTags trims, drops empties and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Comment is a reply attached to a post.
type Comment struct {
	ID         PostID    `json:"id"`
	Post       PostID    `json:"post"`
	Author     *int64    `json:"author,omitempty"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// PostInput carries the user-editable fields of a post.
type PostInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	PostType PostType `json:"post_type"`
	Tags     []string `json:"tags,omitempty"`
}

// LikeStatus is the toggle outcome reported by the like endpoint.
type LikeStatus string

// Like outcomes.
const (
	LikeStatusLiked   LikeStatus = "liked"
	LikeStatusUnliked LikeStatus = "unliked"
)

// LikeResult is the like endpoint response. LikesCount is set when the server
// reports the authoritative count.
type LikeResult struct {
	Status     LikeStatus `json:"status"`
	LikesCount *int       `json:"likes_count,omitempty"`
}

// Upload is an image attached to a new post.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the upload size in bytes.
func (u *Upload) Size() int64 {
	if u == nil {
		return 0
	}
	return int64(len(u.Data))
}

// LikedSet records the posts the user liked, persisted as {"<id>": true}.
// Unliked posts are absent rather than false.
type LikedSet map[PostID]bool

// Has reports whether id is liked.
func (s LikedSet) Has(id PostID) bool {
	return s[id]
}
