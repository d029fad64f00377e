package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/investly/investly/internal/config"
	"github.com/investly/investly/internal/database"
	"github.com/investly/investly/internal/investments"
	"github.com/investly/investly/internal/logger"
	"github.com/investly/investly/internal/mailer"
	"github.com/investly/investly/internal/models"
	"github.com/investly/investly/internal/tasks"
	"github.com/investly/investly/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting Investly Asynq worker")

	db, err := database.Open(cfg.Database.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Asynq client for the settlement scheduler
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	// Initialize Asynq server
	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		},
		asynq.Config{
			Concurrency: 10, // Number of concurrent workers
			Queues: map[string]int{
				tasks.QueueCritical: 6, // 60% of workers for critical tasks
				tasks.QueueDefault:  3, // 30% of workers for default queue
				tasks.QueueLow:      1, // 10% of workers for low priority
			},
			// Logging
			Logger: &asynqLogger{log: log},
		},
	)

	mail := mailer.NewLogMailer(log)
	investmentsService := investments.NewService(db, logger.Component(log, "investments"))

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendVerificationEmail, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleSendVerificationEmail(ctx, t, db, mail, cfg.Server.FrontendURL, log)
	})
	mux.HandleFunc(tasks.TypeSettleInvestments, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleSettleInvestments(ctx, t, investmentsService, log)
	})

	scheduler, err := workers.NewSettlementScheduler(asynqClient, cfg.Jobs.SettlementSchedule, logger.Component(log, "scheduler"))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid settlement schedule")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start settlement scheduler goroutine (checks every minute whether a run is due)
	go scheduler.Run(ctx)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")
	cancel()

	log.Info().Msg("Stopping Asynq worker - waiting for tasks to finish...")
	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
