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

	"go.uber.org/zap"

	"atenea/backend/internal/cache"
	"atenea/backend/internal/config"
	"atenea/backend/internal/httpapi"
	"atenea/backend/internal/logging"
	"atenea/backend/internal/service"
	"atenea/backend/internal/store"
	"atenea/backend/internal/store/memory"
	pgstore "atenea/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if cfg.RunMigrations {
			if err := pg.Migrate(); err != nil {
				logger.Fatal("apply migrations", zap.Error(err))
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var drafts cache.DraftStore = cache.NewMemoryDraftStore()
	if cfg.RedisAddr != "" {
		redisDrafts := cache.NewRedisDraftStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisDrafts.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, keeping drafts in memory", zap.Error(err))
			_ = redisDrafts.Close()
		} else {
			drafts = redisDrafts
			closers = append(closers, redisDrafts.Close)
			logger.Info("drafts: redis")
		}
	} else {
		logger.Info("drafts: in-memory")
	}

	svc := service.New(repo, service.Options{
		Drafts:          drafts,
		Logger:          logger,
		VoucherValidity: cfg.VoucherValidity(),
		LayawayValidity: cfg.LayawayValidity(),
		DraftTTL:        cfg.DraftTTL,
	})
	if err := svc.Reload(ctx); err != nil {
		logger.Fatal("initial load", zap.Error(err))
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	if err := auth.EnsureUsers(ctx, cfg.SeedOwnerPassword, cfg.SeedAccountantPassword); err != nil {
		logger.Fatal("bootstrap accounts", zap.Error(err))
	}
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger,
		LoginLimit:    cfg.LoginRateLimit,
		Development:   cfg.IsDevelopment(),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Atenea backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" && !cfg.IsDevelopment() {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin outside development")
	}
	if cfg.LoginRateLimit < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive")
	}
	return nil
}
