package handlers

import (
	"time"

	"gorm.io/gorm"
)

// UserRecord is an account of the mock API.
type UserRecord struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string
	PasswordHash string `gorm:"not null"`
	IsStaff      bool   `gorm:"default:false"`
	CreatedAt    time.Time
}

// TableName implements gorm's tabler.
func (UserRecord) TableName() string { return "users" }

// ProfileRecord is the student profile attached to a user.
type ProfileRecord struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"uniqueIndex;not null"`
	StudentID  string `gorm:"size:20"`
	Bio        string
	IsVerified bool
	CreatedAt  time.Time
}

// TableName implements gorm's tabler.
func (ProfileRecord) TableName() string { return "profiles" }

// PostRecord stores a post. Tags are kept comma-separated the way the
// create form submits them.
type PostRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Title     string `gorm:"size:200;not null"`
	Content   string `gorm:"not null"`
	PostType  string `gorm:"size:20;index"`
	AuthorID  uint   `gorm:"index;not null"`
	Tags      string
	ImageData []byte
	ImageType string
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (PostRecord) TableName() string { return "posts" }

// CommentRecord stores a comment on a post.
type CommentRecord struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"index;not null"`
	AuthorID  uint   `gorm:"not null"`
	Content   string `gorm:"not null"`
	CreatedAt time.Time
}

// TableName implements gorm's tabler.
func (CommentRecord) TableName() string { return "comments" }

// LikeRecord marks that a user liked a post. A user likes a post at most once.
type LikeRecord struct {
	ID        uint `gorm:"primaryKey"`
	PostID    uint `gorm:"uniqueIndex:idx_like_post_user;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_like_post_user;not null"`
	CreatedAt time.Time
}

// TableName implements gorm's tabler.
func (LikeRecord) TableName() string { return "likes" }

// Migrate creates or updates the mock API tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserRecord{},
		&ProfileRecord{},
		&PostRecord{},
		&CommentRecord{},
		&LikeRecord{},
	)
}
