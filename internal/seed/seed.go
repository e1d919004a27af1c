// Package seed fills the mock API database with demo accounts, posts,
// comments and likes. It is meant for development and tests only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campuscreatives/internal/handlers"
	"campuscreatives/internal/observability"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Fixed accounts created on every seed.
const (
	DemoUsername      = "demo"
	ModeratorUsername = "moderator"
	DefaultPassword   = "campus-demo-pass"
)

// Options configure the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	Password    string
	RandSeed    int64
	ShouldClean bool
	MaxDays     int
}

// Summary reports what a seed run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

// postTypes includes the legacy "photo" spelling so clients see both.
var postTypes = []string{"art", "writing", "photography", "photo", "music", "other"}

var tagPool = []string{
	"campus", "studio", "portrait", "poetry", "jazz", "sketch", "film",
	"nature", "gallery", "zine", "printmaking", "ceramics", "acoustic",
}

// Seed populates db. When the demo account already exists and ShouldClean is
// false, it does nothing and reports an empty summary.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var summary Summary
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	faker := gofakeit.New(opts.RandSeed)
	log := observability.Logger.With(slog.String("component", "seed"))

	if opts.ShouldClean {
		if err := clearData(ctx, db); err != nil {
			return summary, fmt.Errorf("failed to clear data: %w", err)
		}
	} else {
		var existing int64
		if err := db.WithContext(ctx).Model(&handlers.UserRecord{}).Where("username = ?", DemoUsername).Count(&existing).Error; err != nil {
			return summary, err
		}
		if existing > 0 {
			log.InfoContext(ctx, "database already seeded")
			return summary, nil
		}
	}

	users, err := createUsers(ctx, db, faker, opts)
	if err != nil {
		return summary, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)

	posts, err := createPosts(ctx, db, faker, users, opts)
	if err != nil {
		return summary, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)

	if summary.Comments, summary.Likes, err = createEngagement(ctx, db, faker, users, posts); err != nil {
		return summary, fmt.Errorf("failed to create engagement: %w", err)
	}

	log.InfoContext(ctx, "database seeded",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("comments", summary.Comments),
		slog.Int("likes", summary.Likes),
	)
	return summary, nil
}

func clearData(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&handlers.LikeRecord{},
		&handlers.CommentRecord{},
		&handlers.PostRecord{},
		&handlers.ProfileRecord{},
		&handlers.UserRecord{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(ctx context.Context, db *gorm.DB, faker *gofakeit.Faker, opts Options) ([]*handlers.UserRecord, error) {
	// Every seeded account shares one password, so hash it once.
	hash, err := handlers.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	users := make([]*handlers.UserRecord, 0, opts.NumUsers+2)
	demo, err := handlers.CreateUserWithHash(ctx, db, DemoUsername, "demo@campus.test", hash, false)
	if err != nil {
		return nil, err
	}
	moderator, err := handlers.CreateUserWithHash(ctx, db, ModeratorUsername, "moderator@campus.test", hash, true)
	if err != nil {
		return nil, err
	}
	users = append(users, demo, moderator)

	taken := map[string]bool{DemoUsername: true, ModeratorUsername: true}
	for len(users) < opts.NumUsers+2 {
		username := strings.ToLower(faker.Username())
		if taken[username] {
			continue
		}
		taken[username] = true
		u, err := handlers.CreateUserWithHash(ctx, db, username, faker.Email(), hash, false)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	for _, u := range users {
		err := db.WithContext(ctx).Model(&handlers.ProfileRecord{}).
			Where("user_id = ?", u.ID).
			Updates(map[string]any{"bio": faker.Sentence(8), "is_verified": faker.Bool()}).Error
		if err != nil {
			return nil, err
		}
	}
	return users, nil
}

func createPosts(ctx context.Context, db *gorm.DB, faker *gofakeit.Faker, users []*handlers.UserRecord, opts Options) ([]handlers.PostRecord, error) {
	if opts.NumPosts <= 0 {
		return nil, nil
	}
	now := time.Now()
	posts := make([]handlers.PostRecord, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := users[faker.Number(0, len(users)-1)]
		age := time.Duration(faker.Number(0, opts.MaxDays*24*60)) * time.Minute
		tags := make([]string, 0, 3)
		for j := faker.Number(0, 3); j > 0; j-- {
			tags = append(tags, faker.RandomString(tagPool))
		}
		created := now.Add(-age)
		posts = append(posts, handlers.PostRecord{
			Title:     strings.TrimSuffix(faker.Sentence(faker.Number(3, 7)), "."),
			Content:   faker.Paragraph(1, faker.Number(2, 5), 12, "\n"),
			PostType:  faker.RandomString(postTypes),
			AuthorID:  author.ID,
			Tags:      strings.Join(tags, ","),
			CreatedAt: created,
			UpdatedAt: created,
		})
	}
	if err := db.WithContext(ctx).CreateInBatches(&posts, 100).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func createEngagement(ctx context.Context, db *gorm.DB, faker *gofakeit.Faker, users []*handlers.UserRecord, posts []handlers.PostRecord) (int, int, error) {
	var comments []handlers.CommentRecord
	var likes []handlers.LikeRecord
	for _, p := range posts {
		for n := faker.Number(0, 4); n > 0; n-- {
			comments = append(comments, handlers.CommentRecord{
				PostID:    p.ID,
				AuthorID:  users[faker.Number(0, len(users)-1)].ID,
				Content:   faker.Sentence(faker.Number(4, 14)),
				CreatedAt: p.CreatedAt.Add(time.Duration(faker.Number(1, 600)) * time.Minute),
			})
		}
		for _, u := range users {
			if faker.Number(0, 2) == 0 {
				likes = append(likes, handlers.LikeRecord{PostID: p.ID, UserID: u.ID})
			}
		}
	}
	if len(comments) > 0 {
		if err := db.WithContext(ctx).CreateInBatches(&comments, 200).Error; err != nil {
			return 0, 0, err
		}
	}
	if len(likes) > 0 {
		if err := db.WithContext(ctx).CreateInBatches(&likes, 200).Error; err != nil {
			return 0, 0, err
		}
	}
	return len(comments), len(likes), nil
}
