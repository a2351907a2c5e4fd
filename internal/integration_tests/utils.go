package integrationtests

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/core"
	"camqc-backend/internal/database"
	"camqc-backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

const (
	minioUsername = "admin"
	minioPassword = "password"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func setupRabbitMQContainer(t *testing.T, ctx context.Context) string {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.11-management")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	return connStr
}

func createDB(t *testing.T) *gorm.DB {
	uri := setupPostgresContainer(t, context.Background())
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

// seedFinishedSession stores a finished QC session with one annotated image
// and a queued report for it.
func seedFinishedSession(t *testing.T, db *gorm.DB, dir string) database.Report {
	session := database.Session{
		Id:           uuid.New(),
		Mode:         2,
		SerialNumber: "SN-42",
		Description:  "Gripper rework",
		Technician:   "Robin",
		WorkflowName: "EOAT QC",
		Status:       database.SessionFinished,
		CreationTime: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&session).Error)

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		img.Set(x, 24, color.RGBA{R: 200, A: 255})
	}
	path := filepath.Join(capture.OutputDir(dir, session.SerialNumber), "SN-42_20260101_120000.jpg")
	require.NoError(t, capture.SaveJPEG(path, img))

	row, err := core.NewCaptureRow(session.Id, capture.Record{
		Path:      path,
		Camera:    "Camera 0",
		Type:      capture.TypeImage,
		Timestamp: time.Now(),
		Step:      1,
		StepTitle: "Visual inspection",
		Markers:   []capture.Marker{{Label: "A", X: 10, Y: 20, Angle: 45, Note: "worn pad"}},
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&row).Error)

	checklist, err := database.ToJSON([]workflow.ChecklistItem{
		{Step: 1, Name: "Visual inspection", Passed: true, Description: "1 image(s)"},
		{Step: 2, Name: "Functional test", Passed: false},
	})
	require.NoError(t, err)

	rep := database.Report{
		Id:           uuid.New(),
		SessionId:    session.Id,
		Status:       database.ReportQueued,
		Checklist:    checklist,
		CreationTime: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&rep).Error)
	return rep
}
