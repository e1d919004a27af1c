package session

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"campuscreatives/internal/api"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// Poster sends JSON to the API. *api.Client implements it.
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

// RegisterPath creates an account.
const RegisterPath = "/register/"

const minPasswordLength = 8

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Manager owns the session lifecycle and is the api.TokenSource of the client.
type Manager struct {
	client Poster
	tokens *TokenStore
	state  store.Store
	flags  *featureflags.Manager
	log    *observability.APILogger

	refreshGroup singleflight.Group

	mu       sync.Mutex
	onLogout []func(ctx context.Context)
}

var _ api.TokenSource = (*Manager)(nil)

// NewManager returns a session manager. The user record lives in the
// primary backend of tokens.
func NewManager(client Poster, tokens *TokenStore, flags *featureflags.Manager) *Manager {
	return &Manager{
		client: client,
		tokens: tokens,
		state:  tokens.Primary(),
		flags:  flags,
		log:    observability.NewAPILogger("auth"),
	}
}

// OnLogout registers fn to run after every logout, including the forced
// logout of a failed refresh.
func (m *Manager) OnLogout(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.onLogout = append(m.onLogout, fn)
	m.mu.Unlock()
}

// Login exchanges credentials for a token pair and records the user.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	var resp tokenResponse
	err := m.client.Post(ctx, api.TokenPath, map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		m.log.LogError(ctx, "login", err)
		return nil, err
	}
	if resp.Access == "" {
		return nil, models.NewUnauthenticatedError("Login response did not include a token")
	}

	if err := m.tokens.Save(ctx, models.Tokens{Access: resp.Access, Refresh: resp.Refresh}); err != nil {
		return nil, models.NewInternalError(err)
	}
	user := userFromToken(resp.Access, username)
	if err := m.saveUser(ctx, &user); err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "logged in",
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return &user, nil
}

// LoginAsGuest starts a local session without tokens. It is the explicit
// replacement for silently pretending to be logged in when the backend is down.
func (m *Manager) LoginAsGuest(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = "guest"
	}
	if !m.flags.Enabled(featureflags.GuestMode, username) {
		return nil, models.NewAuthorizationError("Guest mode is disabled")
	}

	if err := m.tokens.Clear(ctx); err != nil {
		return nil, models.NewInternalError(err)
	}
	user := models.User{Username: username, Role: models.RoleGuest}
	if err := m.saveUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *Manager) saveUser(ctx context.Context, user *models.User) error {
	if err := store.SetJSON(ctx, m.state, store.KeyUser, user, 0); err != nil {
		return models.NewInternalError(err)
	}
	if err := m.state.Set(ctx, store.KeyIsLoggedIn, "true", 0); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// AccessToken returns the current access token or "".
func (m *Manager) AccessToken(ctx context.Context) string {
	return m.tokens.Access(ctx)
}

// Refresh obtains a new access token. Concurrent callers share one request.
// When the server rejects the refresh the session is logged out and
// SESSION_EXPIRED is returned. A caller whose ctx ends first gets
// NETWORK_UNAVAILABLE and leaves the session untouched; the shared request
// runs to completion for the other callers.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.NewNetworkError(err)
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		return nil, m.refresh(flightCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			observability.TokenRefreshes.WithLabelValues("shared").Inc()
		}
		return res.Err
	case <-ctx.Done():
		return models.NewNetworkError(ctx.Err())
	}
}

func (m *Manager) refresh(ctx context.Context) (err error) {
	span, ctx := observability.NewSpan(ctx, "session.refresh")
	defer func() {
		span.SetError(err)
		span.End()
	}()

	refreshToken := m.tokens.Refresh(ctx)
	if refreshToken == "" {
		return m.expire(ctx, errors.New("no refresh token"))
	}

	var resp tokenResponse
	if err := m.client.Post(ctx, api.RefreshPath, map[string]string{"refresh": refreshToken}, &resp); err != nil {
		return m.expire(ctx, err)
	}
	if resp.Access == "" {
		return m.expire(ctx, errors.New("refresh response did not include a token"))
	}

	if err := m.tokens.SetAccess(ctx, resp.Access); err != nil {
		return m.expire(ctx, err)
	}
	if resp.Refresh != "" {
		if err := m.tokens.SetRefresh(ctx, resp.Refresh); err != nil {
			return m.expire(ctx, err)
		}
	}
	span.AddAttributes(attribute.Bool("session.rotated", resp.Refresh != ""))
	observability.TokenRefreshes.WithLabelValues("success").Inc()
	return nil
}

func (m *Manager) expire(ctx context.Context, cause error) error {
	observability.TokenRefreshes.WithLabelValues("failure").Inc()
	m.log.LogError(ctx, "refresh", cause)
	if err := m.Logout(ctx); err != nil {
		m.log.LogError(ctx, "logout", err)
	}
	return models.NewSessionExpiredError(cause)
}

// Logout removes the session from every backend and runs the logout hooks.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.tokens.Clear(ctx)

	m.mu.Lock()
	hooks := append([]func(context.Context){}, m.onLogout...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
	return err
}

// CurrentUser returns the stored user record or nil.
func (m *Manager) CurrentUser(ctx context.Context) *models.User {
	var user models.User
	found, err := store.GetJSON(ctx, m.state, store.KeyUser, &user)
	if err != nil {
		observability.Logger.WarnContext(ctx, "unreadable user record", slog.String("error", err.Error()))
		return nil
	}
	if !found {
		return nil
	}
	return &user
}

// IsAuthenticated reports whether an access token is present.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.AccessToken(ctx) != ""
}

// IsLoggedIn reports whether any session, guest included, is active.
func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	v, err := m.state.Get(ctx, store.KeyIsLoggedIn)
	return err == nil && v == "true"
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	switch {
	case username == "":
		return models.NewValidationError("Username is required")
	case email != "" && !validEmail(email):
		return models.NewValidationError("Email address is invalid")
	case len(password) < minPasswordLength:
		return models.NewValidationError("Password must be at least 8 characters")
	}

	return m.client.Post(ctx, RegisterPath, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// UpdateUser applies fn to the stored user record and saves it.
func (m *Manager) UpdateUser(ctx context.Context, fn func(u *models.User)) (*models.User, error) {
	user := m.CurrentUser(ctx)
	if user == nil {
		return nil, models.NewUnauthenticatedError("Please login first")
	}
	fn(user)
	if err := store.SetJSON(ctx, m.state, store.KeyUser, user, 0); err != nil {
		return nil, models.NewInternalError(err)
	}
	return user, nil
}
