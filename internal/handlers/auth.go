package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"campuscreatives/internal/models"
	"campuscreatives/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const claimsLocal = "claims"

// Token kinds carried in the token_type claim.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// ErrTokenInvalid is returned for tokens that fail verification or were revoked.
var ErrTokenInvalid = errors.New("token is invalid or expired")

// Claims are the JWT claims issued by the mock API.
type Claims struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	IsStaff   bool   `json:"is_staff"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() uint {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id)
}

// TokenIssuer signs and verifies HS256 token pairs.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns an issuer signing with secret.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue signs a fresh access and refresh token for user.
func (t *TokenIssuer) Issue(user *UserRecord) (models.Tokens, error) {
	access, err := t.sign(user, TokenAccess, t.accessTTL)
	if err != nil {
		return models.Tokens{}, err
	}
	refresh, err := t.sign(user, TokenRefresh, t.refreshTTL)
	if err != nil {
		return models.Tokens{}, err
	}
	return models.Tokens{Access: access, Refresh: refresh}, nil
}

func (t *TokenIssuer) sign(user *UserRecord, kind string, ttl time.Duration) (string, error) {
	now := t.now()
	role := string(models.RoleStudent)
	if user.IsStaff {
		role = string(models.RoleAdmin)
	}
	claims := Claims{
		Username:  user.Username,
		Email:     user.Email,
		Role:      role,
		IsStaff:   user.IsStaff,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify parses raw and checks its signature, expiry and kind.
func (t *TokenIssuer) Verify(raw, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != kind || claims.UserID() == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

func (h *Handlers) revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return h.cache.Set(ctx, revokedKey(claims.ID), "1", ttl)
}

func (h *Handlers) revoked(ctx context.Context, claims *Claims) (bool, error) {
	_, err := h.cache.Get(ctx, revokedKey(claims.ID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// AuthRequired verifies the bearer access token and stores its claims in the context.
func (h *Handlers) AuthRequired(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return respondWithError(c, fiber.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	claims, err := h.tokens.Verify(strings.TrimSpace(raw), TokenAccess)
	if err != nil {
		return respondWithError(c, fiber.StatusUnauthorized, "Given token not valid for any token type")
	}
	c.Locals(claimsLocal, claims)
	return c.Next()
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ObtainToken handles POST /api/auth/token/.
func (h *Handlers) ObtainToken(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = "This field is required."
	}
	if req.Password == "" {
		fields["password"] = "This field is required."
	}
	if len(fields) > 0 {
		return respondWithFieldErrors(c, fields)
	}

	var user UserRecord
	err := h.db.WithContext(c.UserContext()).Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error
	if err != nil && !isNotFound(err) {
		return h.internalError(c, "obtain token", err)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return respondWithError(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
	}

	tokens, err := h.tokens.Issue(&user)
	if err != nil {
		return h.internalError(c, "obtain token", err)
	}
	return c.JSON(tokens)
}

// RefreshToken handles POST /api/auth/token/refresh/. Refresh tokens rotate:
// the presented token is revoked once a new pair is issued.
func (h *Handlers) RefreshToken(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.BodyParser(&req); err != nil || req.Refresh == "" {
		return respondWithFieldErrors(c, map[string]string{"refresh": "This field is required."})
	}

	ctx := c.UserContext()
	claims, err := h.tokens.Verify(req.Refresh, TokenRefresh)
	if err != nil {
		return respondWithError(c, fiber.StatusUnauthorized, "Token is invalid or expired")
	}
	revoked, err := h.revoked(ctx, claims)
	if err != nil {
		return h.internalError(c, "refresh token", err)
	}
	if revoked {
		return respondWithError(c, fiber.StatusUnauthorized, "Token is blacklisted")
	}

	var user UserRecord
	if err := h.db.WithContext(ctx).First(&user, claims.UserID()).Error; err != nil {
		if isNotFound(err) {
			return respondWithError(c, fiber.StatusUnauthorized, "User not found")
		}
		return h.internalError(c, "refresh token", err)
	}

	tokens, err := h.tokens.Issue(&user)
	if err != nil {
		return h.internalError(c, "refresh token", err)
	}
	if err := h.revoke(ctx, claims); err != nil {
		return h.internalError(c, "refresh token", err)
	}
	return c.JSON(tokens)
}

// Register handles POST /api/register/.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	fields := map[string]string{}
	if req.Username == "" {
		fields["username"] = "This field is required."
	}
	if len(req.Password) < 8 {
		fields["password"] = "This password is too short. It must contain at least 8 characters."
	}
	if len(fields) > 0 {
		return respondWithFieldErrors(c, fields)
	}

	ctx := c.UserContext()
	var count int64
	if err := h.db.WithContext(ctx).Model(&UserRecord{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return h.internalError(c, "register", err)
	}
	if count > 0 {
		return respondWithFieldErrors(c, map[string]string{"username": "A user with that username already exists."})
	}

	user, err := CreateUser(ctx, h.db, req.Username, req.Email, req.Password, false)
	if err != nil {
		return h.internalError(c, "register", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}
