package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobhub/inbox-worker/internal/classifier"
	"github.com/jobhub/inbox-worker/internal/config"
	"github.com/jobhub/inbox-worker/internal/database"
	"github.com/jobhub/inbox-worker/internal/dedup"
	"github.com/jobhub/inbox-worker/internal/gmail"
	"github.com/jobhub/inbox-worker/internal/logging"
	"github.com/jobhub/inbox-worker/internal/matcher"
	"github.com/jobhub/inbox-worker/internal/repository"
	"github.com/jobhub/inbox-worker/internal/retry"
	"github.com/jobhub/inbox-worker/internal/server"
	"github.com/jobhub/inbox-worker/internal/service"
)

func main() {
	if err := run(); err != nil {
		logging.Log.WithError(err).Fatal("application error")
	}
}

func run() error {
	log := logging.Log

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)
	log.Info("database connected")

	log.Info("running database migrations")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	log.Info("migrations completed")

	// Optional Redis fast path for the dedup gate
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb = redis.NewClient(opts)
		log.Info("dedup cache enabled")
	}

	// Repositories
	appRepo := repository.NewApplicationRepository(db)
	eventRepo := repository.NewEventRepository(db)
	emailRepo := repository.NewEmailRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	// Workflow components
	gate := dedup.NewGate(rdb, emailRepo, log)
	cls := classifier.NewClient(cfg.LLMAPIKey, cfg.LLMAPIURL)
	if cfg.LLMModel != "" {
		cls.SetModel(cfg.LLMModel)
	}
	cls.SetTimeout(time.Duration(cfg.ClassifierTimeout) * time.Second)
	match := matcher.New(appRepo, log)
	mutator := service.NewApplicationMutator(appRepo, eventRepo, log)

	retryPolicy := retry.DefaultPolicy
	retryPolicy.MaxAttempts = cfg.MaxRetries

	processor := service.NewEmailProcessor(
		gate, emailRepo, cls, match, mutator,
		retryPolicy, cfg.UnmatchedEventPolicy, log,
	)

	// Gmail push ingestion
	gmailClient := gmail.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret)
	gmailSync := service.NewGmailSyncService(accountRepo, gmailClient, processor, log)

	srv := server.New(cfg.HTTPAddr, processor, gmailSync, log)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-sigChan:
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown timeout exceeded")
		}
		log.Info("application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
