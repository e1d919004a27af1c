package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"campuscreatives/internal/api"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"
	"campuscreatives/internal/validation"

	"github.com/google/uuid"
)

// PostRepository defines the post and comment operations of the client.
type PostRepository interface {
	ListPosts(ctx context.Context) ([]models.Post, Source, error)
	GetPost(ctx context.Context, id models.PostID) (*models.Post, error)
	CreatePost(ctx context.Context, in models.PostInput, image *models.Upload) (*models.Post, Source, error)
	UpdatePost(ctx context.Context, post *models.Post, in models.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, post *models.Post) error
	CanModify(ctx context.Context, post *models.Post) bool
	LikePost(ctx context.Context, id models.PostID) (models.LikeResult, error)

	ListComments(ctx context.Context, postID models.PostID, forceFresh bool) ([]models.Comment, Source, error)
	AddComment(ctx context.Context, postID models.PostID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID models.PostID) error

	OfflinePosts(ctx context.Context) ([]models.Post, error)
	SyncOffline(ctx context.Context) (SyncResult, error)
}

// postRepository implements PostRepository
type postRepository struct {
	api      Transport
	session  Session
	store    store.Store
	flags    *featureflags.Manager
	log      *observability.APILogger
	storeLog *observability.StoreLogger
	now      func() time.Time

	mu    sync.RWMutex
	known map[models.PostID]models.Post

	queueMu sync.Mutex
}

// NewPostRepository creates a new post repository.
func NewPostRepository(t Transport, s Session, st store.Store, flags *featureflags.Manager) PostRepository {
	return &postRepository{
		api:      t,
		session:  s,
		store:    st,
		flags:    flags,
		log:      observability.NewAPILogger("posts"),
		storeLog: observability.NewStoreLogger(st.Name()),
		now:      time.Now,
		known:    make(map[models.PostID]models.Post),
	}
}

func (r *postRepository) subject(ctx context.Context) string {
	if u := r.session.CurrentUser(ctx); u != nil {
		return u.Username
	}
	return ""
}

func (r *postRepository) remember(posts ...models.Post) {
	r.mu.Lock()
	for _, p := range posts {
		r.known[p.ID] = p
	}
	r.mu.Unlock()
}

func (r *postRepository) lastKnown(id models.PostID) (models.Post, bool) {
	r.mu.RLock()
	p, ok := r.known[id]
	r.mu.RUnlock()
	return p, ok
}

func (r *postRepository) forget(id models.PostID) {
	r.mu.Lock()
	delete(r.known, id)
	r.mu.Unlock()
}

// ListPosts returns the server's posts, or the fixed fallback set with
// SourceFallback when they cannot be fetched.
func (r *postRepository) ListPosts(ctx context.Context) ([]models.Post, Source, error) {
	var raw json.RawMessage
	err := r.api.Do(ctx, api.Request{Method: http.MethodGet, Path: postsPath}, &raw)
	if err == nil {
		var posts []models.Post
		posts, err = pagedList[models.Post](raw)
		if err == nil {
			r.remember(posts...)
			return posts, SourceRemote, nil
		}
	}

	r.log.LogFallback(ctx, "list posts", err)
	observability.Fallbacks.WithLabelValues("posts").Inc()
	return models.FallbackPosts(r.now()), SourceFallback, nil
}

// GetPost fetches one post. Queued offline posts are found locally when the
// server does not know them or cannot be reached.
func (r *postRepository) GetPost(ctx context.Context, id models.PostID) (*models.Post, error) {
	var post models.Post
	err := r.api.Do(ctx, api.Request{Method: http.MethodGet, Path: postPath(id)}, &post)
	if err == nil {
		r.remember(post)
		return &post, nil
	}

	if models.IsCode(err, models.CodeNetworkUnavailable) || models.IsCode(err, models.CodeNotFound) {
		if queued, ok := r.findOffline(ctx, id); ok {
			return &queued, nil
		}
	}
	if models.IsCode(err, models.CodeNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return nil, err
}

// CreatePost validates and submits a new post. When the server cannot be
// reached and offline posts are enabled, the post is queued locally and
// returned with SourceOffline and a DegradedError.
func (r *postRepository) CreatePost(ctx context.Context, in models.PostInput, image *models.Upload) (*models.Post, Source, error) {
	clean, err := validation.Post(in)
	if err != nil {
		return nil, "", err
	}
	if image != nil {
		if _, err := validation.Image(image); err != nil {
			return nil, "", err
		}
	}
	if err := requireAuth(ctx, r.session, "create a post"); err != nil {
		return nil, "", err
	}

	var created models.Post
	err = r.api.Do(ctx, createRequest(clean, image), &created)
	if err == nil {
		r.remember(created)
		return &created, SourceRemote, nil
	}

	if !models.IsCode(err, models.CodeNetworkUnavailable) || !r.flags.Enabled(featureflags.OfflinePosts, r.subject(ctx)) {
		r.log.LogError(ctx, "create post", err)
		return nil, "", err
	}

	queued, qerr := r.enqueue(ctx, clean)
	if qerr != nil {
		return nil, "", errors.Join(err, qerr)
	}
	r.log.LogFallback(ctx, "create post", err)
	observability.Fallbacks.WithLabelValues("offline_post").Inc()
	return &queued, SourceOffline, &models.DegradedError{Operation: "create post", Err: err}
}

func createRequest(in models.PostInput, image *models.Upload) api.Request {
	if image == nil {
		return api.Request{Method: http.MethodPost, Path: postsPath, JSON: in}
	}
	form := api.NewMultipart().
		Field("title", in.Title).
		Field("content", in.Content).
		Field("post_type", string(in.PostType))
	if len(in.Tags) > 0 {
		form.Field("tags", strings.Join(in.Tags, ","))
	}
	form.File("image", image.Filename, image.ContentType, image.Data)
	return api.Request{Method: http.MethodPost, Path: postsPath, Form: form}
}

// CanModify reports whether the current user may edit or delete post: its
// author, or an admin by server-issued role.
func (r *postRepository) CanModify(ctx context.Context, post *models.Post) bool {
	if post == nil {
		return false
	}
	u := r.session.CurrentUser(ctx)
	if u == nil || u.IsGuest() {
		return false
	}
	return u.IsAdmin() || (post.AuthorName != "" && u.Username == post.AuthorName)
}

// UpdatePost replaces the editable fields of post.
func (r *postRepository) UpdatePost(ctx context.Context, post *models.Post, in models.PostInput) (*models.Post, error) {
	if post == nil {
		return nil, models.NewNotFoundMessage("Post not found")
	}
	clean, err := validation.Post(in)
	if err != nil {
		return nil, err
	}
	if post.Offline {
		return r.updateOffline(ctx, post.ID, clean)
	}
	if err := requireAuth(ctx, r.session, "edit posts"); err != nil {
		return nil, err
	}
	if !r.CanModify(ctx, post) {
		return nil, models.NewAuthorizationError("You can only edit your own posts")
	}

	var updated models.Post
	if err := r.api.Do(ctx, api.Request{Method: http.MethodPut, Path: postPath(post.ID), JSON: clean}, &updated); err != nil {
		return nil, err
	}
	if updated.ID == "" {
		updated = *post
		updated.Title, updated.Content, updated.PostType, updated.Tags = clean.Title, clean.Content, clean.PostType, clean.Tags
	}
	r.remember(updated)
	return &updated, nil
}

// DeletePost removes post from the server, or from the offline queue.
func (r *postRepository) DeletePost(ctx context.Context, post *models.Post) error {
	if post == nil {
		return models.NewNotFoundMessage("Post not found")
	}
	if post.Offline {
		return r.removeOffline(ctx, post.ID)
	}
	if err := requireAuth(ctx, r.session, "delete posts"); err != nil {
		return err
	}
	if !r.CanModify(ctx, post) {
		return models.NewAuthorizationError("You can only delete your own posts")
	}
	if err := r.api.Do(ctx, api.Request{Method: http.MethodDelete, Path: postPath(post.ID)}, nil); err != nil {
		return err
	}
	r.forget(post.ID)
	r.dropCommentCache(ctx, post.ID)
	return nil
}

// LikePost toggles the current user's like on the server.
func (r *postRepository) LikePost(ctx context.Context, id models.PostID) (models.LikeResult, error) {
	if err := requireAuth(ctx, r.session, "like posts"); err != nil {
		return models.LikeResult{}, err
	}
	var res models.LikeResult
	if err := r.api.Do(ctx, api.Request{Method: http.MethodPost, Path: postPath(id) + "like/"}, &res); err != nil {
		return models.LikeResult{}, err
	}
	if res.Status != models.LikeStatusLiked && res.Status != models.LikeStatusUnliked {
		return models.LikeResult{}, models.NewInternalError(errors.New("unexpected like status " + string(res.Status)))
	}
	return res, nil
}

// newOfflinePost builds the local record of a post that could not be sent.
func (r *postRepository) newOfflinePost(ctx context.Context, in models.PostInput) models.Post {
	author := "You"
	if u := r.session.CurrentUser(ctx); u != nil {
		author = u.Username
	}
	return models.Post{
		ID:         models.PostID(uuid.NewString()),
		Title:      in.Title,
		Content:    in.Content,
		PostType:   in.PostType,
		AuthorName: author,
		CreatedAt:  r.now(),
		Tags:       in.Tags,
		Offline:    true,
	}
}
