package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"campuscreatives/internal/api"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"
	"campuscreatives/internal/validation"
)

func (r *postRepository) commentCacheEnabled(ctx context.Context) bool {
	return r.flags.Enabled(featureflags.CommentCache, r.subject(ctx))
}

// ListComments returns a post's comments. A recent cached copy is reused
// unless forceFresh is set. When the server cannot answer, the comments
// embedded in the last known copy of the post are returned, else demo comments.
func (r *postRepository) ListComments(ctx context.Context, postID models.PostID, forceFresh bool) ([]models.Comment, Source, error) {
	if _, ok := r.findOffline(ctx, postID); ok {
		return []models.Comment{}, SourceOffline, nil
	}

	key := store.CommentsKey(postID.String())
	req := api.Request{Method: http.MethodGet, Path: postPath(postID) + "comments/"}
	if forceFresh {
		req.Query = url.Values{"_t": {strconv.FormatInt(r.now().UnixMilli(), 10)}}
	}

	var comments []models.Comment
	fetch := func() error {
		var raw json.RawMessage
		if err := r.api.Do(ctx, req, &raw); err != nil {
			return err
		}
		list, err := pagedList[models.Comment](raw)
		if err != nil {
			return err
		}
		if list == nil {
			list = []models.Comment{}
		}
		comments = list
		return nil
	}

	var err error
	switch {
	case !r.commentCacheEnabled(ctx):
		err = fetch()
	case forceFresh:
		if err = fetch(); err == nil {
			if serr := store.SetJSON(ctx, r.store, key, comments, store.CommentsTTL); serr != nil {
				r.storeLog.LogError(ctx, "cache set", key, serr)
			}
		}
	default:
		var hit bool
		hit, err = store.Aside(ctx, r.store, key, &comments, store.CommentsTTL, fetch)
		if err == nil && hit {
			return comments, SourceCache, nil
		}
	}
	if err == nil {
		return comments, SourceRemote, nil
	}

	r.log.LogFallback(ctx, "list comments", err)
	observability.Fallbacks.WithLabelValues("comments").Inc()
	if p, ok := r.lastKnown(postID); ok && len(p.Comments) > 0 {
		return append([]models.Comment(nil), p.Comments...), SourceFallback, nil
	}
	return models.FallbackComments(postID, r.now()), SourceFallback, nil
}

// AddComment posts a comment and invalidates the cached list.
func (r *postRepository) AddComment(ctx context.Context, postID models.PostID, content string) (*models.Comment, error) {
	content, err := validation.Comment(content)
	if err != nil {
		return nil, err
	}
	if err := requireAuth(ctx, r.session, "comment"); err != nil {
		return nil, err
	}

	var c models.Comment
	err = r.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   postPath(postID) + "comment/",
		JSON:   map[string]string{"content": content},
	}, &c)
	if err != nil {
		return nil, err
	}

	r.dropCommentCache(ctx, postID)
	if p, ok := r.lastKnown(postID); ok {
		p.CommentsCount++
		r.remember(p)
	}
	return &c, nil
}

// DeleteComment removes a comment. The server decides who may do so.
func (r *postRepository) DeleteComment(ctx context.Context, postID, commentID models.PostID) error {
	if err := requireAuth(ctx, r.session, "delete comments"); err != nil {
		return err
	}
	path := "/comments/" + url.PathEscape(commentID.String()) + "/"
	if err := r.api.Do(ctx, api.Request{Method: http.MethodDelete, Path: path}, nil); err != nil {
		return err
	}

	r.dropCommentCache(ctx, postID)
	if p, ok := r.lastKnown(postID); ok && p.CommentsCount > 0 {
		p.CommentsCount--
		r.remember(p)
	}
	return nil
}

func (r *postRepository) dropCommentCache(ctx context.Context, postID models.PostID) {
	key := store.CommentsKey(postID.String())
	if err := r.store.Delete(ctx, key); err != nil {
		r.storeLog.LogError(ctx, "cache delete", key, err)
	}
}
