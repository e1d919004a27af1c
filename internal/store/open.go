package store

import (
	"context"
	"fmt"
	"io"

	"campuscreatives/internal/config"
)

// Open builds the backend named by backend using cfg. The caller closes the
// returned closer, which is a no-op for the memory backend.
func Open(ctx context.Context, backend string, cfg *config.Config) (Store, io.Closer, error) {
	switch backend {
	case config.StoreMemory:
		return NewMemory(), nopCloser{}, nil
	case config.StoreRedis:
		r, err := NewRedis(ctx, cfg.RedisURL, "campus:")
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case config.StoreSQLite, config.StorePostgres:
		var s *SQL
		if backend == config.StoreSQLite {
			db, err := OpenSQLite(cfg.SQLitePath)
			if err != nil {
				return nil, nil, err
			}
			s = NewSQL(db)
		} else {
			db, err := OpenPostgres(cfg.PostgresDSN())
			if err != nil {
				return nil, nil, err
			}
			s = NewSQL(db)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
