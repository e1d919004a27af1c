package session

import (
	"strings"

	"campuscreatives/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the claims the API may put in an access token. The token
// is only decoded here; the server is the one that verifies it.
type accessClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsStaff  bool   `json:"is_staff,omitempty"`
	jwt.RegisteredClaims
}

// parseClaims decodes the payload of token without verifying its signature.
func parseClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// userFromToken builds the user record for a fresh login. Only an explicit
// role or is_staff claim grants admin.
func userFromToken(token, username string) models.User {
	u := models.User{Username: username, Role: models.RoleStudent}
	claims, err := parseClaims(token)
	if err != nil {
		return u
	}
	if claims.Username != "" {
		u.Username = claims.Username
	}
	u.Email = claims.Email
	if strings.EqualFold(claims.Role, string(models.RoleAdmin)) || claims.IsStaff {
		u.Role = models.RoleAdmin
	}
	return u
}
