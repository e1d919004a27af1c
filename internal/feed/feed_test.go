package feed

import (
	"testing"
	"time"

	"campuscreatives/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func samplePosts() []models.Post {
	return []models.Post{
		{ID: "1", Title: "Sunset", PostType: "photo", AuthorName: "sana", LikesCount: 15, CommentsCount: 3, CreatedAt: base.Add(-1 * time.Hour), Tags: []string{"nature", "sunset"}},
		{ID: "2", Title: "Portfolio", PostType: "art", AuthorName: "omar", LikesCount: 35, CommentsCount: 9, CreatedAt: base.Add(-26 * time.Hour), Tags: []string{"art"}},
		{ID: "3", Title: "Welcome", PostType: "writing", AuthorName: "sana", LikesCount: 15, CommentsCount: 8, CreatedAt: base, Tags: []string{"nature"}},
		{ID: "4", Title: "Lake", PostType: "photography", AuthorName: "lee", LikesCount: 2, CommentsCount: 8, CreatedAt: base.Add(-10 * 24 * time.Hour)},
		{ID: "5", Title: "Mystery", PostType: "sculpture", AuthorName: "sana", LikesCount: 0, CommentsCount: 0, CreatedAt: base.Add(-8 * 24 * time.Hour)},
	}
}

func ids(posts []models.Post) []models.PostID {
	out := make([]models.PostID, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestProject_Sorts(t *testing.T) {
	tests := []struct {
		name string
		sort models.SortKey
		want []models.PostID
	}{
		{"newest", models.SortNewest, []models.PostID{"3", "1", "2", "5", "4"}},
		{"oldest", models.SortOldest, []models.PostID{"4", "5", "2", "1", "3"}},
		{"most liked keeps input order on ties", models.SortMostLiked, []models.PostID{"2", "1", "3", "4", "5"}},
		{"most commented keeps input order on ties", models.SortMostCommented, []models.PostID{"2", "3", "4", "1", "5"}},
		{"unknown sort is newest", models.SortKey("random"), []models.PostID{"3", "1", "2", "5", "4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(samplePosts(), models.FilterState{PostType: models.FilterAll, Sort: tt.sort})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestProject_Filters(t *testing.T) {
	posts := samplePosts()

	photos := Project(posts, models.FilterState{PostType: "photography", Sort: models.SortNewest})
	assert.Equal(t, []models.PostID{"1", "4"}, ids(photos), "legacy photo posts appear under photography")

	alias := Project(posts, models.FilterState{PostType: "photo", Sort: models.SortNewest})
	assert.Equal(t, ids(photos), ids(alias))

	other := Project(posts, models.FilterState{PostType: "other"})
	assert.Equal(t, []models.PostID{"5"}, ids(other))

	music := Project(posts, models.FilterState{PostType: "music"})
	assert.Empty(t, music)
	assert.NotNil(t, music)

	for _, unknown := range []string{"sculpture", "Pottery", "all-types"} {
		got := Project(posts, models.FilterState{PostType: unknown, Sort: models.SortNewest})
		assert.Empty(t, got, unknown)
		assert.NotNil(t, got, unknown)
	}
	assert.Equal(t, ids(photos), ids(Project(posts, models.FilterState{PostType: " Photography "})))

	for _, p := range photos {
		assert.Equal(t, models.PostTypePhotography, p.Category())
	}
}

func TestProject_AllIsPermutation(t *testing.T) {
	posts := samplePosts()
	got := Project(posts, models.DefaultFilter())
	assert.ElementsMatch(t, ids(posts), ids(got))

	empty := Project(nil, models.DefaultFilter())
	assert.Empty(t, empty)
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	posts := samplePosts()
	before := ids(posts)
	out := Project(posts, models.FilterState{PostType: models.FilterAll, Sort: models.SortOldest})
	assert.Equal(t, before, ids(posts))

	out[0].Title = "changed"
	assert.NotEqual(t, "changed", posts[3].Title)
}

func TestProject_Idempotent(t *testing.T) {
	f := models.FilterState{PostType: "writing", Sort: models.SortMostLiked}
	once := Project(samplePosts(), f)
	assert.Equal(t, once, Project(once, f))
}

func TestCategoryStats(t *testing.T) {
	stats := CategoryStats(samplePosts())
	require.Len(t, stats, len(models.PostTypes))

	photo := stats[models.PostTypePhotography]
	assert.Equal(t, 2, photo.Count)
	assert.Equal(t, 17, photo.Likes)
	assert.Equal(t, 11, photo.Comments)
	assert.Equal(t, []string{"sana", "lee"}, photo.Authors)

	assert.Equal(t, CategoryStat{}, stats[models.PostTypeMusic])
	assert.Equal(t, 1, stats[models.PostTypeOther].Count)

	many := make([]models.Post, 5)
	for i := range many {
		many[i] = models.Post{PostType: "art", AuthorName: string(rune('a' + i))}
	}
	assert.Len(t, CategoryStats(many)[models.PostTypeArt].Authors, 3)
}

func TestPopularTags(t *testing.T) {
	tags := PopularTags(samplePosts(), 20)
	assert.Equal(t, []TagCount{{"nature", 2}, {"sunset", 1}, {"art", 1}}, tags)
	assert.Len(t, PopularTags(samplePosts(), 1), 1)
	assert.Empty(t, PopularTags(nil, 5))
}

func TestUserStats(t *testing.T) {
	s := UserStats(samplePosts(), "sana", base)

	assert.Equal(t, 3, s.TotalPosts)
	assert.Equal(t, 30, s.TotalLikes)
	assert.Equal(t, 11, s.TotalComments)
	assert.Equal(t, map[models.PostType]int{
		models.PostTypePhotography: 1,
		models.PostTypeWriting:     1,
		models.PostTypeOther:       1,
	}, s.PostsByType)
	assert.Equal(t, 13.7, s.AvgEngagement)
	assert.Equal(t, EngagementHigh, s.Level)
	require.NotNil(t, s.MostPopular)
	assert.Equal(t, models.PostID("1"), s.MostPopular.ID, "first post wins a tie")
	assert.Equal(t, 2, s.RecentPosts)

	none := UserStats(samplePosts(), "nobody", base)
	assert.Equal(t, 0, none.TotalPosts)
	assert.Nil(t, none.MostPopular)
	assert.Equal(t, 0.0, none.AvgEngagement)
	assert.Equal(t, EngagementLow, none.Level)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, EngagementHigh, LevelFor(10.1))
	assert.Equal(t, EngagementMedium, LevelFor(10))
	assert.Equal(t, EngagementMedium, LevelFor(5.1))
	assert.Equal(t, EngagementLow, LevelFor(5))
}
