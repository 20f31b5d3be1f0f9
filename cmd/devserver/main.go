package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/devstore"
	"github.com/meowecho-tech/vote/internal/handlers"
	"github.com/meowecho-tech/vote/internal/log"
	"github.com/meowecho-tech/vote/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.NewWithWriter(cfg.Environment, cfg.Log.Level, os.Stdout)

	if cfg.DevServer.Security.JWTAccessSecret == "" {
		logger.Fatal().Msg("VOTE_DEVSERVER_SECURITY_JWTACCESSSECRET must be set")
	}

	store := devstore.New(logger)
	if err := store.Seed(cfg.DevServer.SeedUsers); err != nil {
		logger.Fatal().Err(err).Msg("seed users failed")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, store)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server exited cleanly")
}
