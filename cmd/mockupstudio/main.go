// Package main is the entry point for the mockup studio server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"mockupstudio/internal/assets"
	"mockupstudio/internal/cache"
	"mockupstudio/internal/composite"
	"mockupstudio/internal/config"
	"mockupstudio/internal/database"
	"mockupstudio/internal/drafts"
	"mockupstudio/internal/editor"
	"mockupstudio/internal/engine"
	"mockupstudio/internal/fonts"
	"mockupstudio/internal/handlers"
	"mockupstudio/internal/middleware"
	"mockupstudio/internal/router"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/store"
)

func main() {
	// Structured logger, text output.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"draft_backend", cfg.DraftBackend,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the sample template (no-op if templates already exist).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (preview cache, and drafts by default).
	valkeyClient, err := cache.ConnectValkey(context.Background(), cache.Options{
		Host:     cfg.ValkeyHost,
		Port:     cfg.ValkeyPort,
		Password: cfg.ValkeyPassword,
	})
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Initialize data stores.
	templateStore := store.NewTemplateStore(db)
	revisionStore := store.NewTemplateRevisionStore(db)
	mediaStore := store.NewMediaStore(db)

	// Connect to S3-compatible object storage (optional, uploads and
	// preview publishing are disabled without it).
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3BucketPublic, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	// The interfaces below must stay nil, not hold a nil *storage.Client.
	var (
		objects    handlers.ObjectStore
		remover    handlers.ObjectRemover
		assetStore assets.ObjectStore
	)
	if storageClient != nil {
		objects, remover, assetStore = storageClient, storageClient, storageClient
		slog.Info("s3 storage connected",
			"endpoint", cfg.S3Endpoint,
			"public_bucket", cfg.S3BucketPublic,
		)
	} else {
		slog.Warn("s3 storage not configured, uploads disabled")
	}

	// Rendering pipeline: images, fonts, compositor, engine.
	images := assets.New(assets.Options{Storage: assetStore})

	var fontSource fonts.Source
	if cfg.FontDir != "" {
		fontSource = fonts.DirSource{Dir: cfg.FontDir}
	}
	renderer := composite.NewRenderer(fonts.NewRegistry(fontSource), images)
	renderer.HighMultiplier = cfg.ExportMultiplier

	eng := engine.New(templateStore, renderer, images, engine.Options{
		Concurrency: cfg.ExportConcurrency,
		Previews:    cache.NewPreviewCache(valkeyClient, cache.DefaultPreviewTTL),
		PreviewKey:  cache.PreviewKey,
	})

	// Customer drafts.
	backend, closeBackend, err := draftBackend(cfg, valkeyClient)
	if err != nil {
		slog.Error("failed to open draft storage", "error", err)
		os.Exit(1)
	}
	defer closeBackend()
	draftStore := drafts.NewStore(backend, drafts.Policy{
		Quota:  cfg.DraftQuotaBytes,
		Retain: cfg.DraftRetain,
		TTL:    cfg.DraftTTL,
	})

	// Editing sessions.
	registry := editor.NewRegistry(cfg.SessionIdle, nil)
	saver := handlers.NewTemplateSaver(templateStore, eng, objects, mediaStore)

	// Create handler groups with their dependencies.
	templateHandlers := handlers.NewTemplates(templateStore, revisionStore, eng)
	editorHandlers := handlers.NewEditor(registry, templateStore, saver, eng, cfg.AutoSaveDelay)
	mediaHandlers := handlers.NewMedia(mediaStore, remover)
	uploadHandlers := handlers.NewUploads(objects, mediaStore, cfg.MaxUploadBytes())
	customerHandlers := handlers.NewCustomer(eng, draftStore)

	uploadLimiter := middleware.NewRateLimiter(30, time.Minute)
	defer uploadLimiter.Stop()
	renderLimiter := middleware.NewRateLimiter(120, time.Minute)
	defer renderLimiter.Stop()

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Options{
		Operator:      middleware.NewOperatorAuth(cfg.OperatorTokenHash, cfg.IsDev()),
		UploadLimiter: uploadLimiter,
		RenderLimiter: renderLimiter,
		SecureCookies: !cfg.IsDev(),
		Health:        handlers.Health(db),
	}, templateHandlers, editorHandlers, mediaHandlers, uploadHandlers, customerHandlers)

	// Create the HTTP server with sensible timeouts.
	// WriteTimeout must accommodate print exports at high multipliers.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Flush unsaved edits of sessions still open.
	registry.Shutdown(ctx)

	slog.Info("server stopped gracefully")
}

// draftBackend opens the configured draft backend and returns its closer.
func draftBackend(cfg *config.Config, valkeyClient *redis.Client) (drafts.Backend, func(), error) {
	switch cfg.DraftBackend {
	case "valkey":
		return drafts.NewRedisBackend(valkeyClient), func() {}, nil
	case "sqlite":
		b, err := drafts.OpenSQLite(cfg.DraftSQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("sqlite draft storage opened", "path", cfg.DraftSQLitePath)
		return b, func() { b.Close() }, nil
	case "memory":
		slog.Warn("drafts kept in memory, they are lost on restart")
		return drafts.NewMemoryBackend(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown draft backend %q", cfg.DraftBackend)
}
