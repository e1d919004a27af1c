package repository

import (
	"context"
	"log/slog"
	"net/http"

	"campuscreatives/internal/api"
	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"
)

// SyncResult reports what SyncOffline did.
type SyncResult struct {
	Synced  []models.Post
	Pending int
}

func (r *postRepository) loadQueue(ctx context.Context) ([]models.Post, error) {
	var queue []models.Post
	if _, err := store.GetJSON(ctx, r.store, store.KeyPosts, &queue); err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range queue {
		queue[i].Offline = true
	}
	return queue, nil
}

func (r *postRepository) saveQueue(ctx context.Context, queue []models.Post) error {
	if len(queue) == 0 {
		if err := r.store.Delete(ctx, store.KeyPosts); err != nil {
			return models.NewInternalError(err)
		}
		return nil
	}
	if err := store.SetJSON(ctx, r.store, store.KeyPosts, queue, 0); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// enqueue stores a new offline post at the front of the queue.
func (r *postRepository) enqueue(ctx context.Context, in models.PostInput) (models.Post, error) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	queue, err := r.loadQueue(ctx)
	if err != nil {
		return models.Post{}, err
	}
	post := r.newOfflinePost(ctx, in)
	queue = append([]models.Post{post}, queue...)
	if err := r.saveQueue(ctx, queue); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (r *postRepository) findOffline(ctx context.Context, id models.PostID) (models.Post, bool) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	queue, err := r.loadQueue(ctx)
	if err != nil {
		return models.Post{}, false
	}
	for _, p := range queue {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

func (r *postRepository) updateOffline(ctx context.Context, id models.PostID, in models.PostInput) (*models.Post, error) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	queue, err := r.loadQueue(ctx)
	if err != nil {
		return nil, err
	}
	for i := range queue {
		if queue[i].ID != id {
			continue
		}
		queue[i].Title, queue[i].Content, queue[i].PostType, queue[i].Tags = in.Title, in.Content, in.PostType, in.Tags
		if err := r.saveQueue(ctx, queue); err != nil {
			return nil, err
		}
		updated := queue[i]
		return &updated, nil
	}
	return nil, models.NewNotFoundError("Post", id)
}

func (r *postRepository) removeOffline(ctx context.Context, id models.PostID) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	queue, err := r.loadQueue(ctx)
	if err != nil {
		return err
	}
	kept := queue[:0]
	for _, p := range queue {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(queue) {
		return models.NewNotFoundError("Post", id)
	}
	return r.saveQueue(ctx, kept)
}

// OfflinePosts lists the posts waiting to be sent, newest first.
func (r *postRepository) OfflinePosts(ctx context.Context) ([]models.Post, error) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return r.loadQueue(ctx)
}

// SyncOffline submits queued posts oldest first. Sent posts leave the queue;
// the first network failure stops the run and keeps the rest queued.
func (r *postRepository) SyncOffline(ctx context.Context) (SyncResult, error) {
	if err := requireAuth(ctx, r.session, "sync offline posts"); err != nil {
		return SyncResult{}, err
	}

	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	queue, err := r.loadQueue(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	var runErr error
	sent := make(map[models.PostID]bool, len(queue))
	for i := len(queue) - 1; i >= 0; i-- {
		p := queue[i]
		in := models.PostInput{Title: p.Title, Content: p.Content, PostType: p.PostType, Tags: p.Tags}

		var created models.Post
		err := r.api.Do(ctx, api.Request{Method: http.MethodPost, Path: postsPath, JSON: in}, &created)
		if err == nil {
			sent[p.ID] = true
			r.remember(created)
			result.Synced = append(result.Synced, created)
			continue
		}
		if models.IsCode(err, models.CodeValidation) {
			observability.Logger.WarnContext(ctx, "offline post rejected by server",
				slog.String("post_id", p.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		runErr = err
		break
	}

	remaining := make([]models.Post, 0, len(queue)-len(sent))
	for _, p := range queue {
		if !sent[p.ID] {
			remaining = append(remaining, p)
		}
	}
	result.Pending = len(remaining)
	if err := r.saveQueue(ctx, remaining); err != nil {
		return result, err
	}
	return result, runErr
}
