package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"camqc-backend/cmd"
	"camqc-backend/internal/config"
	"camqc-backend/internal/core"
	"camqc-backend/internal/database"
	"camqc-backend/internal/messaging"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg := config.LoadServer()

	closeLog := cmd.SetupLogging(cfg.Root)
	defer closeLog()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store := cmd.CreateS3Store(cfg)

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to create RabbitMQ receiver: %v", err)
	}

	worker := core.NewTaskProcessor(db, store, publisher, receiver, cmd.ReportOptions(cfg.Common))

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start()
	}()

	slog.Info("worker started, waiting for report tasks", "output_dir", cfg.OutputDir, "bucket", cfg.ArchiveBucket)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received, waiting for the current task to finish")
	worker.Stop()
	<-done

	slog.Info("worker process stopped")
}
