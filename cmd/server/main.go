// Package main initializes and starts the credkeeper HTTP server,
// setting up configuration, logging, the credential store, the auth
// service and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/credkeeper/internal/config"
	"github.com/atinyakov/credkeeper/internal/db"
	"github.com/atinyakov/credkeeper/internal/logger"
	"github.com/atinyakov/credkeeper/internal/repository"
	"github.com/atinyakov/credkeeper/internal/server/handler/http"
	"github.com/atinyakov/credkeeper/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher, err := service.NewBcryptHasher(options.BcryptCost, options.HashConcurrency)
	if err != nil {
		zapLogger.Fatal("invalid hasher settings", zap.Error(err))
	}

	// Select the backend: PostgreSQL when a DSN is given, the users file otherwise.
	var (
		repo        service.UserRepository
		healthCheck *http.HealthHandler
	)
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		repo = repository.NewPostgresUserRepository(postgresDB)
		zapLogger.Info("using postgres user storage")
	} else {
		store := repository.NewCredentialStore(options.UsersFile, zapLogger)
		repo = store
		healthCheck = &http.HealthHandler{Store: store}
		zapLogger.Info("using file user storage",
			zap.String("path", options.UsersFile), zap.Bool("degraded", store.Degraded()))
	}

	authService := service.NewAuthService(repo,
		service.WithHasher(hasher),
		service.WithLogger(zapLogger),
	)

	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	router := http.NewRouter(authHandler, healthCheck, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
