package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campuscreatives/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// HashPassword returns the bcrypt hash stored for password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CreateUser hashes password and stores a user with an empty profile.
func CreateUser(ctx context.Context, db *gorm.DB, username, email, password string, staff bool) (*UserRecord, error) {
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return CreateUserWithHash(ctx, db, username, email, hashed, staff)
}

// CreateUserWithHash stores a user whose password is already hashed, plus
// its profile, in one transaction.
func CreateUserWithHash(ctx context.Context, db *gorm.DB, username, email, hash string, staff bool) (*UserRecord, error) {
	user := &UserRecord{Username: username, Email: email, PasswordHash: hash, IsStaff: staff}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&ProfileRecord{UserID: user.ID, StudentID: defaultStudentID(user.ID)}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return user, nil
}

func defaultStudentID(userID uint) string {
	return fmt.Sprintf("STU%06d", userID)
}

func (h *Handlers) loadProfile(ctx context.Context, userID uint) (*UserRecord, *ProfileRecord, error) {
	var user UserRecord
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, nil, err
	}
	profile := ProfileRecord{UserID: userID}
	err := h.db.WithContext(ctx).
		Where(ProfileRecord{UserID: userID}).
		Attrs(ProfileRecord{StudentID: defaultStudentID(userID)}).
		FirstOrCreate(&profile).Error
	if err != nil {
		return nil, nil, err
	}
	return &user, &profile, nil
}

func presentProfile(user *UserRecord, p *ProfileRecord) models.Profile {
	return models.Profile{
		ID:         int64(p.ID),
		Username:   user.Username,
		Email:      user.Email,
		StudentID:  p.StudentID,
		Bio:        p.Bio,
		IsVerified: p.IsVerified,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetProfile handles GET /api/profiles/me/.
func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	user, profile, err := h.loadProfile(c.UserContext(), currentUser(c).UserID())
	if err != nil {
		if isNotFound(err) {
			return respondWithError(c, fiber.StatusNotFound, "Not found.")
		}
		return h.internalError(c, "get profile", err)
	}
	return c.JSON(presentProfile(user, profile))
}

// UpdateProfile handles PUT /api/profiles/me/. Absent fields are left as they are.
func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx := c.UserContext()
	user, profile, err := h.loadProfile(ctx, currentUser(c).UserID())
	if err != nil {
		if isNotFound(err) {
			return respondWithError(c, fiber.StatusNotFound, "Not found.")
		}
		return h.internalError(c, "update profile", err)
	}

	if req.StudentID != nil {
		sid := strings.TrimSpace(*req.StudentID)
		if len(sid) > 20 {
			return respondWithFieldErrors(c, map[string]string{"student_id": "Ensure this field has no more than 20 characters."})
		}
		profile.StudentID = sid
	}
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if err := h.db.WithContext(ctx).Save(profile).Error; err != nil {
		return h.internalError(c, "update profile", err)
	}
	return c.JSON(presentProfile(user, profile))
}
