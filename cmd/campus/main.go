// Command campus is the terminal client for the Campus Creatives platform.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campuscreatives/internal/config"
	"campuscreatives/internal/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Init(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "campus-client",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg)
	stop()

	if err := shutdownTracing(context.Background()); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config) int {
	app, err := NewApp(ctx, cfg, os.Stdout, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "campus: %v\n", err)
		return 1
	}
	defer app.Close()

	if err := Run(ctx, app, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", describeError(err))
		return 1
	}
	return 0
}
