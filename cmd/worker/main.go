package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meowecho-tech/vote/internal/cache"
	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/jobs"
	"github.com/meowecho-tech/vote/internal/log"
	"github.com/meowecho-tech/vote/internal/queue"
	"github.com/meowecho-tech/vote/internal/service"
	"github.com/meowecho-tech/vote/internal/session"
	"github.com/meowecho-tech/vote/internal/storage"
	"github.com/meowecho-tech/vote/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.NewWithWriter(cfg.Environment, cfg.Log.Level, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	// The worker acts with the session an operator stored in Redis through
	// the console.
	sess := session.New(session.NewRedisStore(client, cfg.Session.RedisKey, cfg.Session.TTL), logger)
	if err := sess.Restore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("restore session failed")
	}
	if !sess.Authenticated() {
		logger.Warn().Msg("no stored session; tasks fail until an operator logs in with session.store=redis")
	}

	api := session.NewClient(sess, session.Options{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		RefreshTimeout: cfg.API.RefreshTimeout,
		Logger:         logger,
	})

	var (
		archive  service.ImportArchive
		payloads tasks.PayloadSource
	)
	if cfg.Storage.Enabled {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		archive = service.NewObjectArchive(objectStore, logger)
		payloads = objectStore
	}

	elections := service.NewElectionService(api, logger)
	contests := service.NewContestService(api, archive, logger)

	processor := tasks.NewProcessor(elections, contests, payloads, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	).WithMaxDeliveries(cfg.Worker.MaxDeliveries)

	var scheduler *jobs.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = jobs.NewScheduler(cfg.Scheduler.CloseSpec, elections, queue.NewProducer(client, cfg.Worker.Stream), logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-time.After(5 * time.Second):
			logger.Warn().Msg("close sweep still running at shutdown")
		}
	}
	logger.Info().Msg("worker exited")
}
