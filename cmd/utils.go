package cmd

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"camqc-backend/internal/camera"
	"camqc-backend/internal/config"
	"camqc-backend/internal/core"
	"camqc-backend/internal/messaging"
	"camqc-backend/internal/progress"
	"camqc-backend/internal/scanner"
	"camqc-backend/internal/session"
	"camqc-backend/internal/storage"
	"camqc-backend/internal/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// SetupLogging tees the log output to stderr and a daily file under
// <root>/logs. The returned func closes the file.
func SetupLogging(root string) func() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	dir := filepath.Join(root, "logs")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	name := fmt.Sprintf("camqc_%s.log", time.Now().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	log.SetOutput(io.MultiWriter(f, os.Stderr))
	return func() { f.Close() }
}

// Cameras bundles the camera manager with the plugin process backing it, if any.
type Cameras struct {
	*camera.Manager
	plugin *camera.PluginDriver
}

func (c *Cameras) Close() {
	c.Manager.Close()
	if c.plugin != nil {
		c.plugin.Kill()
	}
}

// CreateCameras launches the camera plugin when one is configured and runs an
// initial discovery. Without a plugin the backend still serves network
// cameras, and falls back to a demo device when nothing at all is configured.
func CreateCameras(cfg config.Common) *Cameras {
	cams := newCameras(cfg)
	infos := cams.Rediscover()
	slog.Info("cameras discovered", "count", len(infos))
	return cams
}

func newCameras(cfg config.Common) *Cameras {
	var network []camera.Device
	for i, url := range cfg.NetworkCameras {
		network = append(network, camera.NewNetworkCamera(fmt.Sprintf("Network Camera %d", i+1), url))
	}

	if cfg.CameraPlugin != "" {
		driver, err := camera.LaunchPlugin(cfg.CameraPlugin)
		if err != nil {
			log.Fatalf("failed to launch camera plugin %s: %v", cfg.CameraPlugin, err)
		}
		slog.Info("camera plugin started", "path", cfg.CameraPlugin)
		return &Cameras{
			Manager: camera.NewManager(driver.Opener(), cfg.MaxCameraIndex, network...),
			plugin:  driver,
		}
	}

	if len(network) > 0 {
		return &Cameras{Manager: camera.NewManager(camera.FakeOpener(), 1, network...)}
	}

	slog.Warn("no CAMERA_PLUGIN or NETWORK_CAMERAS configured, using a demo camera")
	demo := camera.NewFakeDevice("Demo Camera", camera.SolidFrame(640, 480, color.Gray{Y: 128}))
	return &Cameras{Manager: camera.NewManager(camera.FakeOpener(demo), 0)}
}

func CreateWorkflowStore(cfg config.Common) *workflow.Store {
	store, err := workflow.NewStore(cfg.WorkflowDir)
	if err != nil {
		log.Fatalf("failed to open workflow dir %s: %v", cfg.WorkflowDir, err)
	}
	if cfg.SeedWorkflows {
		if err := store.SeedDefaults(); err != nil {
			log.Fatalf("failed to seed default workflows: %v", err)
		}
	}
	return store
}

func CreateSessionManager(cfg config.Common, db *gorm.DB, cams *Cameras, workflows *workflow.Store, prog *progress.Store, publisher messaging.Publisher) *session.Manager {
	return session.NewManager(session.Deps{
		Cameras:      cams.Manager,
		Workflows:    workflows,
		Progress:     prog,
		DB:           db,
		Publisher:    publisher,
		MediaRoot:    cfg.OutputDir,
		ScanInterval: cfg.ScanInterval,
		VideoFPS:     cfg.VideoFPS,
		Decoder:      scanner.NewZXingDecoder(),
	})
}

func ReportOptions(cfg config.Common) core.ReportOptions {
	return core.ReportOptions{
		OutputDir:   cfg.OutputDir,
		TitlePrefix: cfg.ReportTitle,
		Bucket:      cfg.ArchiveBucket,
		ImageJobs:   cfg.ReportImageJobs,
		MaxAttempts: cfg.ReportMaxAttempts,
		RetryDelay:  cfg.ReportRetryDelay,
	}
}

// RequeuePending republishes reports left QUEUED by a previous run.
func RequeuePending(db *gorm.DB, publisher messaging.Publisher) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := core.RequeuePending(ctx, db, publisher); err != nil {
		log.Fatalf("failed to requeue pending reports: %v", err)
	}
}

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	return r
}

func CreateS3Store(cfg config.ServerConfig) *storage.S3ObjectStore {
	store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.CreateBucket(ctx, cfg.ArchiveBucket); err != nil {
		log.Fatalf("Failed to create archive bucket: %v", err)
	}
	return store
}
