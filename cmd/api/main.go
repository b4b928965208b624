package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"zemini/internal/accounts"
	"zemini/internal/actions"
	"zemini/internal/artifacts"
	"zemini/internal/auth"
	"zemini/internal/config"
	"zemini/internal/generation"
	transporthttp "zemini/internal/http"
	"zemini/internal/platform/database"
	"zemini/internal/platform/logging"
	"zemini/internal/platform/migrate"
	"zemini/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	hasher := accounts.NewHasher(cfg.BcryptCost)

	userRepo, artifactRepo, cleanup, err := buildRepositories(ctx, cfg, hasher, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize generation provider", "error", err)
		os.Exit(1)
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
	acts := actions.New(actions.Dependencies{
		Accounts:        accounts.NewService(userRepo, hasher),
		Artifacts:       artifactRepo,
		Provider:        provider,
		Store:           store,
		Tokens:          tokens,
		Logger:          logger,
		ProviderTimeout: cfg.ProviderTimeout,
		StorageTimeout:  cfg.StorageTimeout,
	})

	var router http.Handler
	if cfg.GoogleEnabled() {
		google, err := auth.NewGoogleAuthenticator(ctx, auth.GoogleConfig{
			ClientID:       cfg.GoogleClientID,
			ClientSecret:   cfg.GoogleClientSecret,
			RedirectURL:    cfg.GoogleRedirectURL,
			AllowedDomains: cfg.GoogleAllowedDomains,
			AllowedEmails:  cfg.GoogleAllowedEmails,
		})
		if err != nil {
			logger.Error("failed to initialize google sign-in", "error", err)
			os.Exit(1)
		}
		router = transporthttp.NewRouter(cfg, acts, tokens, google, logger)
	} else {
		logger.Warn("google sign-in disabled; AUTH_GOOGLE_CLIENT_ID is not set")
		router = transporthttp.NewRouter(cfg, acts, tokens, nil, logger)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      transporthttp.GenerationRequestTimeout(cfg) + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("Zemini API listening", "addr", srv.Addr, "store", cfg.DataStore, "provider", cfg.GenerationProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepositories(ctx context.Context, cfg config.Config, hasher *accounts.Hasher, logger *slog.Logger) (accounts.Repository, artifacts.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		users, history, err := seedLocalData(hasher)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using in-memory repository", "demo_account", demoEmail)
		return accounts.NewInMemoryRepository(users), artifacts.NewInMemoryRepository(history), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.PoolOptions{}, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	logger.Info("connected to postgres")
	return accounts.NewPostgresRepository(db), artifacts.NewPostgresRepository(db), cleanup, nil
}

func buildProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (generation.Provider, error) {
	switch cfg.GenerationProvider {
	case "gemini":
		sourceClient := &http.Client{Timeout: 30 * time.Second}
		return generation.NewGeminiProvider(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, sourceClient)
	case "worker":
		if cfg.WorkerURL == "" {
			logger.Warn("GENERATION_WORKER_URL not set; using placeholder images")
			return generation.PlaceholderProvider{}, nil
		}
		// Deadlines come from the per-call context.
		return generation.NewWorkerClient(&http.Client{}, cfg.WorkerURL, generation.WithAPIKey(cfg.WorkerKey)), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.GenerationProvider)
	}
}

func buildStore(cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.CloudinaryURL != "" {
		return storage.NewCloudinaryStore(cfg.CloudinaryURL)
	}
	logger.Warn("CLOUDINARY_URL not set; storing uploads on local disk", "dir", cfg.MediaDir)
	return storage.NewLocalStore(cfg.MediaDir, fmt.Sprintf("http://localhost:%d/media", cfg.HTTPPort))
}
