package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"campuscreatives/internal/api"
	"campuscreatives/internal/config"
	"campuscreatives/internal/engagement"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/repository"
	"campuscreatives/internal/session"
	"campuscreatives/internal/store"
)

// App holds the wired client components a command runs against.
type App struct {
	cfg *config.Config
	out io.Writer
	in  *bufio.Reader
	now func() time.Time

	client   *api.Client
	state    store.Store
	tokens   *session.TokenStore
	session  *session.Manager
	flags    *featureflags.Manager
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	likes    *engagement.Tracker

	closers []io.Closer
}

// NewApp opens the configured stores and wires the client around them.
// The secondary store is optional; failing to open it only logs a warning.
func NewApp(ctx context.Context, cfg *config.Config, out io.Writer, in io.Reader) (*App, error) {
	primary, primaryCloser, err := store.Open(ctx, cfg.StorePrimary, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StorePrimary, err)
	}
	closers := []io.Closer{primaryCloser}

	var secondary store.Store
	if cfg.StoreSecondary != "" && cfg.StoreSecondary != cfg.StorePrimary {
		s, closer, err := store.Open(ctx, cfg.StoreSecondary, cfg)
		if err != nil {
			observability.Logger.WarnContext(ctx, "secondary store unavailable",
				slog.String("backend", cfg.StoreSecondary),
				slog.String("error", err.Error()),
			)
		} else {
			secondary = s
			closers = append(closers, closer)
		}
	}

	a := newApp(cfg, out, in, primary, secondary)
	a.closers = closers
	return a, nil
}

func newApp(cfg *config.Config, out io.Writer, in io.Reader, primary, secondary store.Store) *App {
	a := &App{
		cfg:   cfg,
		out:   out,
		in:    bufio.NewReader(in),
		now:   time.Now,
		state: primary,
		flags: featureflags.NewManager(cfg.FeatureFlags),
	}
	a.client = api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout())
	a.tokens = session.NewTokenStore(primary, secondary)
	a.session = session.NewManager(a.client, a.tokens, a.flags)
	a.client.SetTokenSource(a.session)
	a.session.OnLogout(func(context.Context) { a.printf("Signed out.\n") })
	a.posts = repository.NewPostRepository(a.client, a.session, primary, a.flags)
	a.profiles = repository.NewProfileRepository(a.client, a.session)
	a.likes = engagement.NewTracker(primary, a.posts)
	return a
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// prompt writes question and reads one line of input.
func (a *App) prompt(question string) string {
	a.printf("%s", question)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}
