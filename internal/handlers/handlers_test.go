package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 5*time.Minute, time.Hour)
	user := &UserRecord{ID: 7, Username: "sana", Email: "sana@campus.test"}

	tokens, err := issuer.Issue(user)
	require.NoError(t, err)

	claims, err := issuer.Verify(tokens.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID())
	assert.Equal(t, "sana", claims.Username)
	assert.Equal(t, "student", claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = issuer.Verify(tokens.Access, TokenRefresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = issuer.Verify(tokens.Refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewTokenIssuer("other-secret", 5*time.Minute, time.Hour)
	_, err = other.Verify(tokens.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	tokens, err := issuer.Issue(&UserRecord{ID: 1, Username: "omar", IsStaff: true})
	require.NoError(t, err)

	claims, err := issuer.Verify(tokens.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.IsStaff)

	now = now.Add(2 * time.Minute)
	_, err = issuer.Verify(tokens.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = issuer.Verify(tokens.Refresh, TokenRefresh)
	assert.NoError(t, err)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		TokenType:        TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(unsigned, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestPostPayload_Validate(t *testing.T) {
	tests := []struct {
		name     string
		in       postPayload
		wantKeys []string
		wantType string
	}{
		{"defaults type", postPayload{title: "T", content: "C"}, nil, "other"},
		{"legacy photo kept", postPayload{title: "T", content: "C", postType: "Photo"}, nil, "photo"},
		{"unknown type", postPayload{title: "T", content: "C", postType: "sculpture"}, []string{"post_type"}, ""},
		{"blank fields", postPayload{title: " ", content: ""}, []string{"title", "content"}, ""},
		{"long title", postPayload{title: string(make([]rune, 201)), content: "C"}, []string{"title"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			fields := p.validate()
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, p.postType)
			}
		})
	}
}
