// Package validation checks user input before it is sent to the API.
// Every failure is a models VALIDATION_ERROR.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"campuscreatives/internal/models"
)

// Field limits enforced by the API.
const (
	MaxTitleLength     = 200
	MaxStudentIDLength = 20
)

// Post validates and cleans a post before create or update. An empty type
// becomes writing and the legacy photo alias is normalized.
func Post(in models.PostInput) (models.PostInput, error) {
	out := models.PostInput{
		Title:   SanitizeTitle(in.Title),
		Content: SanitizeContent(in.Content),
		Tags:    models.NormalizeTags(in.Tags),
	}

	if out.Title == "" {
		return out, models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(out.Title) > MaxTitleLength {
		return out, models.NewValidationError(fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
	}
	if out.Content == "" {
		return out, models.NewValidationError("Content is required")
	}

	raw := strings.ToLower(strings.TrimSpace(string(in.PostType)))
	switch {
	case raw == "":
		out.PostType = models.PostTypeWriting
	case models.NormalizePostType(raw) == models.PostTypeOther && raw != string(models.PostTypeOther):
		return out, models.NewValidationError(fmt.Sprintf("Unknown post type %q", in.PostType))
	default:
		out.PostType = models.NormalizePostType(raw)
	}
	return out, nil
}

// Comment validates comment text and returns it cleaned.
func Comment(content string) (string, error) {
	content = SanitizeContent(content)
	if content == "" {
		return "", models.NewValidationError("Comment cannot be empty")
	}
	return content, nil
}

// Profile validates an edit of the student profile.
func Profile(in models.ProfileUpdate) (models.ProfileUpdate, error) {
	var out models.ProfileUpdate
	if in.StudentID != nil {
		id := strings.TrimSpace(*in.StudentID)
		if utf8.RuneCountInString(id) > MaxStudentIDLength {
			return out, models.NewValidationError(fmt.Sprintf("Student ID must be at most %d characters", MaxStudentIDLength))
		}
		out.StudentID = &id
	}
	if in.Bio != nil {
		bio := SanitizeContent(*in.Bio)
		out.Bio = &bio
	}
	return out, nil
}
