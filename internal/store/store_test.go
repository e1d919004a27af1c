package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, KeyAccessToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyAccessToken, "a1", 0))
	require.NoError(t, s.Set(ctx, KeyRefreshToken, "r1", 0))
	got, err := s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", got)

	require.NoError(t, s.Set(ctx, KeyAccessToken, "a2", time.Hour))
	got, err = s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a2", got)

	require.NoError(t, s.Delete(ctx, KeyAccessToken, KeyRefreshToken, "missing"))
	_, err = s.Get(ctx, KeyAccessToken)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, KeyRefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, CommentsKey("1"), "[]", CommentsTTL))
	_, err := m.Get(ctx, CommentsKey("1"))
	require.NoError(t, err)

	now = now.Add(CommentsTTL)
	_, err = m.Get(ctx, CommentsKey("1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ExpiredGetKeepsNewerSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	require.NoError(t, m.Set(ctx, KeyUser, "old", time.Minute))

	// The first clock read happens after the read lock is released; a writer
	// slips in there.
	replaced := false
	m.now = func() time.Time {
		if !replaced {
			replaced = true
			require.NoError(t, m.Set(ctx, KeyUser, "new", 0))
		}
		return start.Add(time.Hour)
	}

	_, err := m.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := m.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, KeyLikedPosts, "{}", 0)
			_, _ = m.Get(ctx, KeyLikedPosts)
			_ = m.Delete(ctx, KeyLikedPosts)
		}()
	}
	wg.Wait()
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	r, err := NewRedis(context.Background(), mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis(t *testing.T) {
	r, _ := newTestRedis(t)
	exerciseStore(t, r)
}

func TestRedis_PrefixAndExpiry(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, CommentsKey("5"), "[]", CommentsTTL))
	assert.True(t, mr.Exists("test:comments:5"))

	mr.FastForward(CommentsTTL + time.Second)
	_, err := r.Get(ctx, CommentsKey("5"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedis_URLAndUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()

	r, err := NewRedis(context.Background(), "redis://"+addr+"/0", "")
	require.NoError(t, err)
	require.NoError(t, r.Set(context.Background(), KeyUser, "{}", 0))
	assert.True(t, mr.Exists(KeyUser))
	_ = r.Close()

	_, err = NewRedis(context.Background(), "redis://%zz", "")
	assert.Error(t, err)

	mr.Close()
	_, err = NewRedis(context.Background(), addr, "")
	assert.Error(t, err)
}

func TestRedis_FromClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	exerciseStore(t, r)
}

func newTestSQLite(t *testing.T) *SQL {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "campus.db"))
	require.NoError(t, err)
	s := NewSQL(db)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite(t *testing.T) {
	s := newTestSQLite(t)
	assert.Equal(t, "sqlite", s.Name())
	exerciseStore(t, s)
}

func TestSQLite_Expiry(t *testing.T) {
	s := newTestSQLite(t)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, CommentsKey("2"), `[{"id":1}]`, time.Minute))
	got, err := s.Get(ctx, CommentsKey("2"))
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, got)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, CommentsKey("2"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ExpiredGetKeepsNewerRow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	start := time.Now()
	s.now = func() time.Time { return start }
	require.NoError(t, s.Set(ctx, KeyUser, "old", time.Minute))

	// The row is read as expired, then a writer replaces it before the
	// cleanup runs.
	replaced := false
	s.now = func() time.Time {
		if !replaced {
			replaced = true
			require.NoError(t, s.Set(ctx, KeyUser, "new", 0))
		}
		return start.Add(time.Hour)
	}

	_, err := s.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestSQL_PostgresGet(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewSQL(db)
	ctx := context.Background()
	assert.Equal(t, "postgres", s.Name())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries" WHERE entry_key = $1`)).
		WithArgs(KeyAccessToken, 1).
		WillReturnRows(sqlmock.NewRows([]string{"entry_key", "value", "expires_at", "updated_at"}).
			AddRow(KeyAccessToken, "tok", nil, time.Now()))

	got, err := s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries" WHERE entry_key = $1`)).
		WithArgs(KeyUser, 1).
		WillReturnRows(sqlmock.NewRows([]string{"entry_key", "value"}))

	_, err = s.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_PostgresDelete(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewSQL(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "kv_entries" WHERE entry_key IN ($1,$2)`)).
		WithArgs(KeyAccessToken, KeyRefreshToken).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.Delete(context.Background(), KeyAccessToken, KeyRefreshToken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var liked map[string]bool
	found, err := GetJSON(ctx, s, KeyLikedPosts, &liked)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, s, KeyLikedPosts, map[string]bool{"7": true}, 0))
	found, err = GetJSON(ctx, s, KeyLikedPosts, &liked)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, liked["7"])

	require.NoError(t, s.Set(ctx, KeyUser, "{not json", 0))
	var v map[string]any
	_, err = GetJSON(ctx, s, KeyUser, &v)
	assert.Error(t, err)
}

func TestAside(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	calls := 0
	fetch := func(dest *[]string) func() error {
		return func() error {
			calls++
			*dest = []string{"a", "b"}
			return nil
		}
	}

	var first []string
	hit, err := Aside(ctx, s, CommentsKey("1"), &first, CommentsTTL, fetch(&first))
	require.NoError(t, err)
	assert.False(t, hit)
	var second []string
	hit, err = Aside(ctx, s, CommentsKey("1"), &second, CommentsTTL, fetch(&second))
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"a", "b"}, second)
}

type readOnlyStore struct{ Store }

func (readOnlyStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("read-only")
}

func TestAside_WriteFailureStillReturnsFetched(t *testing.T) {
	s := readOnlyStore{NewMemory()}
	ctx := context.Background()

	var got []string
	hit, err := Aside(ctx, s, CommentsKey("2"), &got, CommentsTTL, func() error {
		got = []string{"fresh"}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"fresh"}, got)

	_, err = Aside(ctx, s, CommentsKey("2"), &got, CommentsTTL, func() error {
		return errors.New("backend down")
	})
	assert.EqualError(t, err, "backend down")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s, closer, err := Open(ctx, "memory", cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())
	assert.NoError(t, closer.Close())

	s, closer, err = Open(ctx, "sqlite", cfg)
	require.NoError(t, err)
	exerciseStore(t, s)
	assert.NoError(t, closer.Close())

	_, _, err = Open(ctx, "etcd", cfg)
	assert.Error(t, err)
}
