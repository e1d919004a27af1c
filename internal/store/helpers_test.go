package store

import (
	"path/filepath"
	"testing"

	"campuscreatives/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SQLitePath: filepath.Join(t.TempDir(), "open.db"),
		RedisURL:   "127.0.0.1:1",
	}
}
