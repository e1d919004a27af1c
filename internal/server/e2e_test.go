package server

import (
	"net"
	"testing"
	"time"

	"campuscreatives/internal/api"
	"campuscreatives/internal/engagement"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/feed"
	"campuscreatives/internal/models"
	"campuscreatives/internal/repository"
	"campuscreatives/internal/session"
	"campuscreatives/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientStack struct {
	client   *api.Client
	state    *store.Memory
	tokens   *session.TokenStore
	manager  *session.Manager
	flags    *featureflags.Manager
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	tracker  *engagement.Tracker
}

func listen(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	t.Cleanup(func() { _ = s.App().Shutdown() })
	return "http://" + ln.Addr().String() + "/api"
}

func newClientStack(baseURL string) *clientStack {
	cs := &clientStack{
		client: api.NewClient(baseURL, 5*time.Second),
		state:  store.NewMemory(),
		flags:  featureflags.NewManager(featureflags.Defaults),
	}
	cs.tokens = session.NewTokenStore(cs.state, store.NewMemory())
	cs.manager = session.NewManager(cs.client, cs.tokens, cs.flags)
	cs.client.SetTokenSource(cs.manager)
	cs.posts = repository.NewPostRepository(cs.client, cs.manager, cs.state, cs.flags)
	cs.profiles = repository.NewProfileRepository(cs.client, cs.manager)
	cs.tracker = engagement.NewTracker(cs.state, cs.posts)
	return cs
}

func TestClientAgainstMockAPI(t *testing.T) {
	base := listen(t, newTestServer(t))
	cs := newClientStack(base)
	ctx := t.Context()

	require.NoError(t, cs.manager.Register(ctx, "juno", "juno@campus.test", testPassword))
	user, err := cs.manager.Login(ctx, "juno", testPassword)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, cs.manager.IsAuthenticated(ctx))

	created, src, err := cs.posts.CreatePost(ctx, models.PostInput{
		Title:    "Charcoal study",
		Content:  "<b>Hands</b><script>alert(1)</script>",
		PostType: models.PostTypeArt,
		Tags:     []string{"sketch"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, repository.SourceRemote, src)
	assert.Equal(t, "juno", created.AuthorName)
	assert.NotContains(t, created.Content, "<script>")

	posts, src, err := cs.posts.ListPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.SourceRemote, src)
	require.Len(t, posts, 1)

	view, err := cs.tracker.ToggleLike(ctx, posts[0])
	require.NoError(t, err)
	assert.True(t, view.Liked)
	assert.Equal(t, 1, view.LikesCount)
	assert.True(t, cs.tracker.IsLiked(ctx, posts[0].ID))

	comment, err := cs.posts.AddComment(ctx, created.ID, "First!")
	require.NoError(t, err)
	comments, src, err := cs.posts.ListComments(ctx, created.ID, true)
	require.NoError(t, err)
	assert.Equal(t, repository.SourceRemote, src)
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)

	// A rejected access token is refreshed once and the request retried.
	require.NoError(t, cs.tokens.SetAccess(ctx, "not-a-token"))
	bio := "Charcoal and ink"
	profile, err := cs.profiles.Update(ctx, models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Charcoal and ink", profile.Bio)
	assert.NotEqual(t, "not-a-token", cs.tokens.Access(ctx))

	edited, err := cs.posts.UpdatePost(ctx, created, models.PostInput{Title: "Charcoal study II", Content: "Hands", PostType: models.PostTypeArt})
	require.NoError(t, err)
	assert.Equal(t, "Charcoal study II", edited.Title)

	stats := feed.UserStats([]models.Post{*edited}, "juno", time.Now())
	assert.Equal(t, 1, stats.TotalPosts)

	require.NoError(t, cs.posts.DeletePost(ctx, edited))
	_, err = cs.posts.GetPost(ctx, edited.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	require.NoError(t, cs.manager.Logout(ctx))
	assert.False(t, cs.manager.IsAuthenticated(ctx))
}

func TestClientOfflineQueueSyncs(t *testing.T) {
	base := listen(t, newTestServer(t))
	cs := newClientStack(base)
	ctx := t.Context()

	_, err := cs.manager.Login(ctx, "sana", testPassword)
	require.NoError(t, err)

	// Same session and store, but a client whose backend is unreachable.
	down := api.NewClient("http://127.0.0.1:1/api", time.Second)
	down.SetTokenSource(cs.manager)
	offline := repository.NewPostRepository(down, cs.manager, cs.state, cs.flags)

	queued, src, err := offline.CreatePost(ctx, models.PostInput{Title: "Field notes", Content: "Written on the bus", PostType: models.PostTypeWriting}, nil)
	require.Error(t, err)
	assert.True(t, models.IsDegraded(err))
	assert.Equal(t, repository.SourceOffline, src)
	assert.True(t, queued.Offline)

	posts, src, err := offline.ListPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.SourceFallback, src)
	assert.NotEmpty(t, posts)

	result, err := cs.posts.SyncOffline(ctx)
	require.NoError(t, err)
	require.Len(t, result.Synced, 1)
	assert.Equal(t, 0, result.Pending)
	assert.Equal(t, "Field notes", result.Synced[0].Title)
	assert.Equal(t, "sana", result.Synced[0].AuthorName)

	remaining, err := cs.posts.OfflinePosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
