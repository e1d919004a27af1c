package handlers

import (
	"context"
	"fmt"
	"strings"

	"campuscreatives/internal/models"

	"github.com/gofiber/fiber/v2"
)

func (h *Handlers) commentsFor(ctx context.Context, postID uint) ([]models.Comment, error) {
	var records []CommentRecord
	if err := h.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at desc").Order("id desc").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []models.Comment{}, nil
	}

	authorIDs := make([]uint, 0, len(records))
	for _, r := range records {
		authorIDs = append(authorIDs, r.AuthorID)
	}
	names, err := h.usernames(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.Comment, 0, len(records))
	for _, r := range records {
		out = append(out, presentComment(r, names[r.AuthorID]))
	}
	return out, nil
}

func presentComment(r CommentRecord, authorName string) models.Comment {
	author := int64(r.AuthorID)
	return models.Comment{
		ID:         models.PostID(fmt.Sprint(r.ID)),
		Post:       models.PostID(fmt.Sprint(r.PostID)),
		Author:     &author,
		AuthorName: authorName,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
	}
}

// ListComments handles GET /api/posts/:id/comments/, newest first.
func (h *Handlers) ListComments(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "list comments", err)
	}
	comments, err := h.commentsFor(c.UserContext(), record.ID)
	if err != nil {
		return h.internalError(c, "list comments", err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comment/.
func (h *Handlers) CreateComment(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "create comment", err)
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return respondWithFieldErrors(c, map[string]string{"content": "This field may not be blank."})
	}

	claims := currentUser(c)
	comment := CommentRecord{PostID: record.ID, AuthorID: claims.UserID(), Content: req.Content}
	if err := h.db.WithContext(c.UserContext()).Create(&comment).Error; err != nil {
		return h.internalError(c, "create comment", err)
	}
	return c.Status(fiber.StatusCreated).JSON(presentComment(comment, claims.Username))
}

// DeleteComment handles DELETE /api/comments/:id/. Only the author or staff may delete.
func (h *Handlers) DeleteComment(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return respondWithError(c, fiber.StatusNotFound, "Not found.")
	}
	ctx := c.UserContext()

	var comment CommentRecord
	if err := h.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return h.postLookupError(c, "delete comment", err)
	}
	if !canModify(currentUser(c), comment.AuthorID) {
		return respondWithError(c, fiber.StatusForbidden, msgForbidden)
	}
	if err := h.db.WithContext(ctx).Delete(&comment).Error; err != nil {
		return h.internalError(c, "delete comment", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
