package feed

import (
	"math"
	"sort"
	"time"

	"campuscreatives/internal/models"
)

const sampleAuthors = 3

// CategoryStat totals one category.
type CategoryStat struct {
	Count    int
	Likes    int
	Comments int
	// Authors holds up to three author names in feed order.
	Authors []string
}

// CategoryStats totals posts per canonical category. Every category is
// present, with zero values when it has no posts.
func CategoryStats(posts []models.Post) map[models.PostType]CategoryStat {
	out := make(map[models.PostType]CategoryStat, len(models.PostTypes))
	for _, t := range models.PostTypes {
		out[t] = CategoryStat{}
	}
	for _, p := range posts {
		s := out[p.Category()]
		s.Count++
		s.Likes += p.LikesCount
		s.Comments += p.CommentsCount
		if len(s.Authors) < sampleAuthors {
			s.Authors = append(s.Authors, p.AuthorName)
		}
		out[p.Category()] = s
	}
	return out
}

// TagCount is a tag and the number of posts carrying it.
type TagCount struct {
	Tag   string
	Count int
}

// PopularTags returns up to limit tags by descending use, ties in first-seen order.
func PopularTags(posts []models.Post, limit int) []TagCount {
	index := make(map[string]int)
	var tags []TagCount
	for _, p := range posts {
		for _, tag := range models.NormalizeTags(p.Tags) {
			i, ok := index[tag]
			if !ok {
				i = len(tags)
				index[tag] = i
				tags = append(tags, TagCount{Tag: tag})
			}
			tags[i].Count++
		}
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })
	if limit >= 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

// EngagementLevel grades average engagement per post.
type EngagementLevel string

// Engagement grades.
const (
	EngagementHigh   EngagementLevel = "High"
	EngagementMedium EngagementLevel = "Medium"
	EngagementLow    EngagementLevel = "Low"
)

// LevelFor grades an average engagement: above 10 is high, above 5 medium.
func LevelFor(avg float64) EngagementLevel {
	switch {
	case avg > 10:
		return EngagementHigh
	case avg > 5:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

// RecentWindow is the span counted as recent activity.
const RecentWindow = 7 * 24 * time.Hour

// Stats are a user's dashboard numbers.
type Stats struct {
	TotalPosts    int
	TotalLikes    int
	TotalComments int
	PostsByType   map[models.PostType]int
	// AvgEngagement is (likes+comments)/posts rounded to one decimal.
	AvgEngagement float64
	Level         EngagementLevel
	// MostPopular is the most liked post; the earliest wins a tie. Nil without posts.
	MostPopular *models.Post
	RecentPosts int
}

// UserStats computes the dashboard of username over posts authored by them.
func UserStats(posts []models.Post, username string, now time.Time) Stats {
	s := Stats{PostsByType: make(map[models.PostType]int)}
	cutoff := now.Add(-RecentWindow)

	for i := range posts {
		p := posts[i]
		if p.AuthorName != username {
			continue
		}
		s.TotalPosts++
		s.TotalLikes += p.LikesCount
		s.TotalComments += p.CommentsCount
		s.PostsByType[p.Category()]++
		if s.MostPopular == nil || p.LikesCount > s.MostPopular.LikesCount {
			s.MostPopular = &p
		}
		if p.CreatedAt.After(cutoff) {
			s.RecentPosts++
		}
	}

	if s.TotalPosts > 0 {
		avg := float64(s.TotalLikes+s.TotalComments) / float64(s.TotalPosts)
		s.AvgEngagement = math.Round(avg*10) / 10
	}
	s.Level = LevelFor(s.AvgEngagement)
	return s
}
