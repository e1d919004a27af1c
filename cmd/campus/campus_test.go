package main

import (
	"bytes"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"campuscreatives/internal/config"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/handlers"
	"campuscreatives/internal/models"
	"campuscreatives/internal/repository"
	"campuscreatives/internal/server"
	"campuscreatives/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Env:                   "test",
		APIBaseURL:            baseURL,
		RequestTimeoutSeconds: 5,
		FeatureFlags:          featureflags.Defaults,
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		RefreshTokenTTLHours:  1,
	}
}

// startMockAPI serves the mock API on a random port with one student
// account and returns the client base URL.
func startMockAPI(t *testing.T) string {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "mock.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	srv, err := server.NewServer(testConfig(""), db, store.NewMemory())
	require.NoError(t, err)
	_, err = handlers.CreateUser(t.Context(), db, "sana", "sana@campus.test", testPassword, false)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = srv.App().Shutdown() })
	return "http://" + ln.Addr().String() + "/api"
}

// cliSession runs commands against one client state, like repeated invocations
// of the binary sharing a store.
type cliSession struct {
	t         *testing.T
	cfg       *config.Config
	primary   store.Store
	secondary store.Store
}

func newCLISession(t *testing.T, baseURL string) *cliSession {
	return &cliSession{t: t, cfg: testConfig(baseURL), primary: store.NewMemory(), secondary: store.NewMemory()}
}

func (s *cliSession) run(input string, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(s.cfg, &out, strings.NewReader(input), s.primary, s.secondary)
	err := Run(s.t.Context(), app, args)
	return out.String(), err
}

func (s *cliSession) must(args ...string) string {
	s.t.Helper()
	out, err := s.run("", args...)
	require.NoError(s.t, err, out)
	return out
}

func TestCommands_PostLifecycle(t *testing.T) {
	s := newCLISession(t, startMockAPI(t))

	out := s.must("login", "sana", "-p", testPassword)
	assert.Contains(t, out, "Signed in as sana (student)")

	out = s.must("whoami")
	assert.Contains(t, out, "Authenticated: true")
	assert.Contains(t, out, "Feature guest_mode: true (on)")

	out = s.must("create", "--title", "Night shoot", "--content", "Long exposure on the quad", "--type", "photo", "--tags", "night, Film")
	assert.Contains(t, out, "Created post 1.")

	out = s.must("feed", "--type", "photography")
	assert.Contains(t, out, `Showing posts of type "Photography" sorted by newest first`)
	assert.Contains(t, out, "[1] Night shoot (Photography) by sana  likes:0 comments:0")

	out = s.must("like", "1")
	assert.Contains(t, out, `Liked "Night shoot". 1 likes.`)
	out = s.must("feed")
	assert.Contains(t, out, "likes:1 comments:0  (liked)")

	s.must("comment", "1", "great", "colours")
	out = s.must("show", "1")
	assert.Contains(t, out, "Tags: night, Film")
	assert.Contains(t, out, "sana, just now: great colours")

	out = s.must("edit", "1", "--title", "Night shoot II")
	assert.Contains(t, out, "Updated post 1.")
	out = s.must("show", "1")
	assert.Contains(t, out, "Night shoot II")
	assert.Contains(t, out, "Long exposure on the quad")

	out = s.must("stats")
	assert.Contains(t, out, "Posts: 1  Likes: 1  Comments: 1")
	assert.Contains(t, out, "Posts this week: 1")

	out = s.must("categories")
	assert.Contains(t, out, "Photography  posts:1 likes:1 comments:1  by sana")
	assert.Contains(t, out, "#Film (1)")

	out = s.must("like", "1")
	assert.Contains(t, out, `Unliked "Night shoot II". 0 likes.`)

	out = s.must("profile", "--bio", "I shoot film")
	assert.Contains(t, out, "Bio: I shoot film")
	assert.Contains(t, out, "Student ID: STU")

	out = s.must("delete", "1")
	assert.Contains(t, out, "Deleted post 1.")
	_, err := s.run("", "show", "1")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	out = s.must("logout")
	assert.Contains(t, out, "Signed out.")
	out = s.must("whoami")
	assert.Contains(t, out, "Not signed in.")
}

func TestCommands_GuestWhenServerDown(t *testing.T) {
	s := newCLISession(t, "http://127.0.0.1:1/api")

	out, err := s.run("y\n", "login", "sana", "-p", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Cannot reach the campus server")
	assert.Contains(t, out, "Browsing as guest sana")

	out = s.must("feed")
	assert.Contains(t, out, "! Offline: the campus server could not be reached")

	_, err = s.run("", "create", "--title", "t", "--content", "c")
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
}

func TestCommands_GuestDeclined(t *testing.T) {
	s := newCLISession(t, "http://127.0.0.1:1/api")

	_, err := s.run("n\n", "login", "sana", "-p", testPassword)
	assert.True(t, models.IsCode(err, models.CodeNetworkUnavailable))
	out := s.must("whoami")
	assert.Contains(t, out, "Not signed in.")
}

func TestCommands_WhoamiUnreadableUser(t *testing.T) {
	s := newCLISession(t, "http://127.0.0.1:1/api")
	ctx := t.Context()
	require.NoError(t, s.primary.Set(ctx, store.KeyIsLoggedIn, "true", 0))
	require.NoError(t, s.primary.Set(ctx, store.KeyUser, "{not json", 0))

	_, err := s.run("", "whoami")
	assert.True(t, models.IsCode(err, models.CodeInternal))
}

func TestSourceBanner(t *testing.T) {
	tests := []struct {
		src  repository.Source
		want string
	}{
		{repository.SourceRemote, ""},
		{repository.SourceCache, "Showing cached content."},
		{repository.SourceOffline, "Saved on this device only"},
		{repository.SourceFallback, "Offline: the campus server could not be reached"},
	}
	for _, tt := range tests {
		t.Run(string(tt.src), func(t *testing.T) {
			got := sourceBanner(tt.src)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestCommands_MissingArgument(t *testing.T) {
	s := newCLISession(t, "http://127.0.0.1:1/api")
	out, err := s.run("", "show")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "usage: campus show <post-id>")
}

func TestRelative(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", relative(now, now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", relative(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", relative(now, now.Add(-3*time.Hour)))
	assert.Equal(t, "2d ago", relative(now, now.Add(-49*time.Hour)))
}

func TestCommands_UnknownCommand(t *testing.T) {
	s := newCLISession(t, "http://127.0.0.1:1/api")
	out, err := s.run("", "frobnicate")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "commands:")
}
