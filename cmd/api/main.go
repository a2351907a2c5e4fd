package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camqc-backend/cmd"
	"camqc-backend/internal/api"
	"camqc-backend/internal/config"
	"camqc-backend/internal/database"
	"camqc-backend/internal/messaging"
	"camqc-backend/internal/progress"

	"github.com/go-chi/chi/v5"
)

func main() {
	log.Println("Starting API Server...")

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
	defer publisher.Close()

	cameras := cmd.CreateCameras(cfg.Common)
	defer cameras.Close()

	workflows := cmd.CreateWorkflowStore(cfg.Common)
	prog := progress.NewStore(cfg.OutputDir, cfg.ProgressMaxAge)
	sessions := cmd.CreateSessionManager(cfg.Common, db, cameras, workflows, prog, publisher)

	apiHandler := api.NewBackendService(api.Services{
		DB:             db,
		Storage:        store,
		Bucket:         cfg.ArchiveBucket,
		Cameras:        cameras,
		Workflows:      workflows,
		Progress:       prog,
		Sessions:       sessions,
		EditorPassword: cfg.EditorPassword,
	})

	r := cmd.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("closing sessions")
		sessions.Shutdown()
	}()

	slog.Info("API server listening", "port", cfg.APIPort, "workflow_dir", cfg.WorkflowDir, "output_dir", cfg.OutputDir)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}
	<-stopped

	slog.Info("server stopped")
}
