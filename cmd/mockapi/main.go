// Command mockapi serves a local stand-in for the campus API, seeded with
// demo data, for development and manual testing of the campus client.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"campuscreatives/internal/config"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/seed"
	"campuscreatives/internal/server"
	"campuscreatives/internal/store"

	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Init(cfg.Env, cfg.LogLevel)

	flags := pflag.NewFlagSet("mockapi", pflag.ExitOnError)
	addr := flags.String("addr", ":"+cfg.MockPort, "listen address")
	driver := flags.String("driver", config.StoreSQLite, "database driver: sqlite or postgres")
	dbPath := flags.String("db", cfg.MockDBPath, "sqlite database path")
	cacheBackend := flags.String("cache", config.StoreMemory, "revoked token store: memory or redis")
	doSeed := flags.Bool("seed", true, "seed demo data on start")
	clean := flags.Bool("clean", false, "clear existing data before seeding")
	numUsers := flags.Int("users", 12, "number of random users to seed")
	numPosts := flags.Int("posts", 40, "number of posts to seed")
	_ = flags.Parse(os.Args[1:])

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "campus-mockapi",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx := context.Background()
	db, err := openDatabase(*driver, *dbPath, cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	cache, closer, err := store.Open(ctx, *cacheBackend, cfg)
	if err != nil {
		log.Fatalf("Failed to open token store: %v", err)
	}
	defer closer.Close()

	srv, err := server.NewServer(cfg, db, cache)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if *doSeed {
		summary, err := seed.Seed(ctx, db, seed.Options{
			NumUsers:    *numUsers,
			NumPosts:    *numPosts,
			ShouldClean: *clean,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		if summary.Users > 0 {
			observability.Logger.Info("demo accounts ready",
				slog.String("student", seed.DemoUsername),
				slog.String("staff", seed.ModeratorUsername),
				slog.String("password", seed.DefaultPassword),
			)
		}
	}

	if err := srv.Run(*addr); err != nil {
		observability.Logger.Error("server stopped", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(ctx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openDatabase(driver, path string, cfg *config.Config) (*gorm.DB, error) {
	if driver == config.StorePostgres {
		return store.OpenPostgres(cfg.PostgresDSN())
	}
	return store.OpenSQLite(path)
}
