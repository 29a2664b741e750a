package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	grpclib "google.golang.org/grpc"

	"moviedb/internal/api"
	"moviedb/internal/cache"
	"moviedb/internal/config"
	"moviedb/internal/domain"
	catalog "moviedb/internal/grpc"
	"moviedb/internal/live"
	"moviedb/internal/metadata"
	"moviedb/internal/store"
	"moviedb/pkg/auth"
)

const tokenIssuer = "moviedb"

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
}

// randomSecret is used when no secret is configured; sessions then end on
// restart.
func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// newCache picks Redis when an address is configured.
func newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("Using in-memory response cache")
		return cache.NewMemory(1000), func() {}
	}
	rc := cache.NewRedis(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), cfg.Prefix)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		// Cache errors are treated as misses, so the service still works.
		logger.Warn("Redis is not reachable yet", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
	} else {
		logger.Info("Using Redis response cache", slog.String("addr", cfg.RedisAddr))
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Error("Failed to close Redis client", slog.String("error", err.Error()))
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		slog.Error("Invalid logging configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(logger)

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx := context.Background()

	// --- Store ---
	movieStore, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("Failed to open store", slog.String("driver", cfg.Store.Driver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		logger.Info("Closing store...")
		if err := movieStore.Close(); err != nil {
			logger.Error("Failed to close store", slog.String("error", err.Error()))
		}
	}()

	// --- Upstream metadata ---
	responseCache, closeCache := newCache(ctx, cfg.Cache, logger)
	defer closeCache()
	opts := metadata.Options{
		Cache:           responseCache,
		CacheTTL:        cfg.Metadata.CacheTTL,
		BreakerFailures: cfg.Metadata.BreakerFailures,
		BreakerTimeout:  cfg.Metadata.BreakerTimeout,
		Logger:          logger,
	}
	meta := metadata.NewService(
		metadata.NewTMDbClient(cfg.TMDb, opts),
		metadata.NewOMDbClient(cfg.OMDb, opts),
		cfg.UI.ImageBaseURL, cfg.UI.PosterSize, cfg.Metadata.SearchLimit, logger)

	// --- Auth ---
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = randomSecret()
	}
	tokens, err := auth.NewTokenManager(jwtSecret, cfg.Auth.SessionTimeout, tokenIssuer)
	if err != nil {
		logger.Error("Failed to create token manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessionSecret := cfg.Auth.SessionSecret
	if sessionSecret == "" {
		sessionSecret = jwtSecret
	}

	hub := live.NewHub(movieStore, cfg.Security.CORSOrigins, logger)

	// --- gRPC ---
	var grpcSrv *grpclib.Server
	if cfg.Server.GRPCPort > 0 {
		grpcAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			logger.Error("Failed to listen for gRPC", slog.String("addr", grpcAddr), slog.String("error", err.Error()))
			os.Exit(1)
		}
		grpcSrv = catalog.NewGRPCServer(movieStore, logger)
		go func() {
			logger.Info("gRPC server starting", slog.String("addr", grpcAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server Serve() failed", slog.String("error", err.Error()))
			}
		}()
	}

	// --- HTTP ---
	handler := api.NewHandler(api.Dependencies{
		Store:     movieStore,
		Metadata:  meta,
		Live:      hub,
		Tokens:    tokens,
		Sessions:  api.NewSessionStore(sessionSecret, cfg.Auth.SessionTimeout, cfg.Auth.CookieSecure),
		Validator: domain.NewValidator(),
		Config:    cfg,
		Logger:    logger,
	})
	httpAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort))
	httpSrv := &http.Server{
		Addr:         httpAddr,
		Handler:      api.NewHTTPRouter(handler, http.HandlerFunc(hub.ServeWS)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting", slog.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe() failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	// Websocket connections are hijacked and not tracked by Shutdown.
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
		logger.Info("gRPC server gracefully stopped")
	}
}
