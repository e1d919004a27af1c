package models

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var fallbackYAML []byte

type fallbackPost struct {
	ID            string        `yaml:"id"`
	Title         string        `yaml:"title"`
	Content       string        `yaml:"content"`
	PostType      string        `yaml:"post_type"`
	AuthorName    string        `yaml:"author_name"`
	LikesCount    int           `yaml:"likes_count"`
	CommentsCount int           `yaml:"comments_count"`
	Age           time.Duration `yaml:"age"`
	Tags          []string      `yaml:"tags"`
}

type fallbackComment struct {
	AuthorName string        `yaml:"author_name"`
	Content    string        `yaml:"content"`
	Age        time.Duration `yaml:"age"`
}

type fallbackData struct {
	Posts    []fallbackPost    `yaml:"posts"`
	Comments []fallbackComment `yaml:"comments"`
}

var fallback = mustLoadFallback(fallbackYAML)

func mustLoadFallback(raw []byte) fallbackData {
	var data fallbackData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		panic(fmt.Sprintf("models: invalid fallback data: %v", err))
	}
	if len(data.Posts) == 0 {
		panic("models: fallback data has no posts")
	}
	return data
}

// FallbackPosts returns the fixed demo posts shown when the backend is
// unreachable, timestamped relative to now. Every call returns a fresh slice.
func FallbackPosts(now time.Time) []Post {
	posts := make([]Post, 0, len(fallback.Posts))
	for _, fp := range fallback.Posts {
		posts = append(posts, Post{
			ID:            PostID(fp.ID),
			Title:         fp.Title,
			Content:       fp.Content,
			PostType:      PostType(fp.PostType),
			AuthorName:    fp.AuthorName,
			LikesCount:    fp.LikesCount,
			CommentsCount: fp.CommentsCount,
			CreatedAt:     now.Add(-fp.Age),
			Tags:          NormalizeTags(fp.Tags),
		})
	}
	return posts
}

// FallbackComments returns the fixed demo comments for a post.
func FallbackComments(postID PostID, now time.Time) []Comment {
	comments := make([]Comment, 0, len(fallback.Comments))
	for i, fc := range fallback.Comments {
		comments = append(comments, Comment{
			ID:         PostID(fmt.Sprintf("demo-%s-%d", postID, i+1)),
			Post:       postID,
			AuthorName: fc.AuthorName,
			Content:    fc.Content,
			CreatedAt:  now.Add(-fc.Age),
		})
	}
	return comments
}
