// Package engagement tracks which posts the user liked and reconciles that
// local record with the server's like responses.
package engagement

import (
	"context"
	"log/slog"
	"sync"

	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"
)

// Liker toggles a like on the server. repository.PostRepository implements it.
type Liker interface {
	LikePost(ctx context.Context, id models.PostID) (models.LikeResult, error)
}

// PostView is a post with the user's like state for display.
type PostView struct {
	models.Post
	Liked bool `json:"liked"`
}

// Tracker persists the LikedSet under the likedPosts key.
type Tracker struct {
	store store.Store
	posts Liker
	mu    sync.Mutex
}

// NewTracker returns a tracker over st.
func NewTracker(st store.Store, posts Liker) *Tracker {
	return &Tracker{store: st, posts: posts}
}

// Liked returns a snapshot of the liked set. An unreadable record counts as empty.
func (t *Tracker) Liked(ctx context.Context) models.LikedSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

func (t *Tracker) load(ctx context.Context) models.LikedSet {
	set := models.LikedSet{}
	if _, err := store.GetJSON(ctx, t.store, store.KeyLikedPosts, &set); err != nil {
		observability.Logger.WarnContext(ctx, "ignoring unreadable liked posts", slog.String("error", err.Error()))
		return models.LikedSet{}
	}
	return set
}

// IsLiked reports whether id is in the liked set.
func (t *Tracker) IsLiked(ctx context.Context, id models.PostID) bool {
	return t.Liked(ctx).Has(id)
}

// SetLiked records or removes id.
func (t *Tracker) SetLiked(ctx context.Context, id models.PostID, liked bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.load(ctx)
	if liked {
		set[id] = true
	} else {
		delete(set, id)
	}
	if err := store.SetJSON(ctx, t.store, store.KeyLikedPosts, set, 0); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ToggleLike sends the like toggle for post and applies the server's answer:
// liked adds one like and records the post, unliked removes one (never below
// zero) and forgets it. A count reported by the server replaces the local one.
func (t *Tracker) ToggleLike(ctx context.Context, post models.Post) (PostView, error) {
	res, err := t.posts.LikePost(ctx, post.ID)
	if err != nil {
		return PostView{Post: post, Liked: t.IsLiked(ctx, post.ID)}, err
	}

	liked := res.Status == models.LikeStatusLiked
	if liked {
		post.AddLikes(1)
	} else {
		post.AddLikes(-1)
	}
	if res.LikesCount != nil {
		post.LikesCount = 0
		post.AddLikes(*res.LikesCount)
	}

	if err := t.SetLiked(ctx, post.ID, liked); err != nil {
		return PostView{Post: post, Liked: liked}, err
	}
	return PostView{Post: post, Liked: liked}, nil
}

// Reconcile pairs posts with the liked set. Counts always come from posts.
func (t *Tracker) Reconcile(ctx context.Context, posts []models.Post) []PostView {
	set := t.Liked(ctx)
	out := make([]PostView, len(posts))
	for i, p := range posts {
		out[i] = PostView{Post: p, Liked: set.Has(p.ID)}
	}
	return out
}
