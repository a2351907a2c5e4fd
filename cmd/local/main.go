package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"camqc-backend/cmd"
	"camqc-backend/internal/api"
	"camqc-backend/internal/config"
	"camqc-backend/internal/core"
	"camqc-backend/internal/database"
	"camqc-backend/internal/messaging"
	"camqc-backend/internal/progress"
	"camqc-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "camqc.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createServer(handler *api.BackendService, port int) *http.Server {
	r := cmd.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		handler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	cfg := config.LoadLocal()

	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}
	closeLog := cmd.SetupLogging(cfg.Root)
	defer closeLog()

	slog.Info("starting camqc local backend", "root", cfg.Root, "port", cfg.Port, "workflow_dir", cfg.WorkflowDir, "output_dir", cfg.OutputDir)

	db := createDatabase(cfg.Root)

	store, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.CreateBucket(context.Background(), cfg.ArchiveBucket); err != nil {
		log.Fatalf("Failed to create archive bucket: %v", err)
	}

	queue := messaging.NewInMemoryQueue()
	worker := core.NewTaskProcessor(db, store, queue, queue, cmd.ReportOptions(cfg.Common))

	slog.Info("starting worker")
	go worker.Start()

	cmd.RequeuePending(db, queue)

	cameras := cmd.CreateCameras(cfg.Common)
	workflows := cmd.CreateWorkflowStore(cfg.Common)
	prog := progress.NewStore(cfg.OutputDir, cfg.ProgressMaxAge)
	sessions := cmd.CreateSessionManager(cfg.Common, db, cameras, workflows, prog, queue)

	handler := api.NewBackendService(api.Services{
		DB:             db,
		Storage:        store,
		Bucket:         cfg.ArchiveBucket,
		Cameras:        cameras,
		Workflows:      workflows,
		Progress:       prog,
		Sessions:       sessions,
		EditorPassword: cfg.EditorPassword,
	})

	server := createServer(handler, cfg.Port)

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
		cameras.Close()

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}
	<-stopped

	slog.Info("server stopped")
}
