package config

import (
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Common holds the settings shared by every backend flavour.
type Common struct {
	WorkflowDir     string        `env:"WORKFLOW_DIR"`
	OutputDir       string        `env:"OUTPUT_DIR"`
	EditorPassword  string        `env:"EDITOR_PASSWORD" envDefault:"admin"`
	CameraPlugin    string        `env:"CAMERA_PLUGIN"`
	NetworkCameras  []string      `env:"NETWORK_CAMERAS" envSeparator:","`
	MaxCameraIndex  int           `env:"MAX_CAMERA_INDEX" envDefault:"3"`
	ScanInterval    time.Duration `env:"SCAN_INTERVAL" envDefault:"100ms"`
	ProgressMaxAge  time.Duration `env:"PROGRESS_MAX_AGE" envDefault:"720h"`
	ReportTitle     string        `env:"REPORT_TITLE" envDefault:"Emtech EOAT Report"`
	VideoFPS        int           `env:"VIDEO_FPS" envDefault:"20"`
	ArchiveBucket   string        `env:"ARCHIVE_BUCKET" envDefault:"reports"`
	SeedWorkflows   bool          `env:"SEED_WORKFLOWS" envDefault:"true"`
	ReportImageJobs int           `env:"REPORT_IMAGE_JOBS" envDefault:"4"`

	ReportMaxAttempts int           `env:"REPORT_MAX_ATTEMPTS" envDefault:"3"`
	ReportRetryDelay  time.Duration `env:"REPORT_RETRY_DELAY" envDefault:"30s"`
}

type LocalConfig struct {
	Root string `env:"ROOT" envDefault:"./camqc"`
	Port int    `env:"PORT" envDefault:"3001"`

	Common
}

type ServerConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string `env:"RABBITMQ_URL,notEmpty,required"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	APIPort           string `env:"API_PORT" envDefault:"8001"`
	Root              string `env:"ROOT" envDefault:"/app/data"`

	Common
}

func LoadLocal() LocalConfig {
	var cfg LocalConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	cfg.Common.fillDirs(cfg.Root)
	return cfg
}

func LoadServer() ServerConfig {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		log.Println("warning: S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}
	cfg.Common.fillDirs(cfg.Root)
	return cfg
}

func (c *Common) fillDirs(root string) {
	if c.WorkflowDir == "" {
		c.WorkflowDir = filepath.Join(root, "workflows")
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(root, "output")
	}

	cams := c.NetworkCameras[:0]
	for _, u := range c.NetworkCameras {
		if u = strings.TrimSpace(u); u != "" {
			cams = append(cams, u)
		}
	}
	c.NetworkCameras = cams
}
