// Package handlers implements the HTTP endpoints of the mock campus API.
package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Handlers serves the mock API out of a gorm database. Revoked refresh
// tokens are tracked in cache.
type Handlers struct {
	db     *gorm.DB
	tokens *TokenIssuer
	cache  store.Store
	log    *slog.Logger
}

// New returns handlers bound to db.
func New(db *gorm.DB, tokens *TokenIssuer, cache store.Store) *Handlers {
	return &Handlers{
		db:     db,
		tokens: tokens,
		cache:  cache,
		log:    observability.Logger.With(slog.String("component", "mockapi")),
	}
}

// Mount mounts every endpoint on router, which is expected to be the /api group.
func (h *Handlers) Mount(router fiber.Router) {
	auth := router.Group("/auth")
	auth.Post("/token", h.ObtainToken)
	auth.Post("/token/refresh", h.RefreshToken)
	router.Post("/register", h.Register)

	posts := router.Group("/posts")
	posts.Get("/", h.ListPosts)
	posts.Get("/:id", h.GetPost)
	posts.Get("/:id/comments", h.ListComments)
	posts.Post("/", h.AuthRequired, h.CreatePost)
	posts.Put("/:id", h.AuthRequired, h.UpdatePost)
	posts.Delete("/:id", h.AuthRequired, h.DeletePost)
	posts.Post("/:id/like", h.AuthRequired, h.LikePost)
	posts.Post("/:id/comment", h.AuthRequired, h.CreateComment)

	router.Delete("/comments/:id", h.AuthRequired, h.DeleteComment)

	router.Get("/profiles/me", h.AuthRequired, h.GetProfile)
	router.Put("/profiles/me", h.AuthRequired, h.UpdateProfile)

	router.Get("/media/posts/:id", h.PostImage)
}

// respondWithError writes the {"detail": ...} body the client expects for
// non-field errors.
func respondWithError(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(models.ErrorResponse{Detail: detail})
}

// respondWithFieldErrors writes a field-keyed validation error body.
func respondWithFieldErrors(c *fiber.Ctx, fields map[string]string) error {
	body := make(fiber.Map, len(fields))
	for field, msg := range fields {
		body[field] = []string{msg}
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func (h *Handlers) internalError(c *fiber.Ctx, operation string, err error) error {
	h.log.ErrorContext(c.UserContext(), "handler failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	return respondWithError(c, fiber.StatusInternalServerError, "Internal server error")
}

func paramID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(claimsLocal).(*Claims)
	return claims
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
