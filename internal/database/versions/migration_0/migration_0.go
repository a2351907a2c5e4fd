package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Session struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Mode         int
	SerialNumber string `gorm:"index"`
	Description  string
	Technician   string
	WorkflowPath string
	WorkflowName string

	Status         string `gorm:"size:20;not null"`
	CreationTime   time.Time
	CompletionTime sql.NullTime

	Captures []Capture `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	Reports  []Report  `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
}

type Capture struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID `gorm:"type:uuid;index"`

	Path      string `gorm:"not null"`
	Camera    string
	Notes     string
	Type      string `gorm:"size:10;not null"`
	Step      int
	StepTitle string

	Markers      datatypes.JSON `gorm:"type:jsonb"`
	BarcodeScans datatypes.JSON `gorm:"type:jsonb"`

	Timestamp time.Time
}

type Report struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID `gorm:"type:uuid;index"`

	Status string `gorm:"size:20;not null"`

	PdfPath  string
	DocxPath string
	PdfKey   string
	DocxKey  string

	Checklist datatypes.JSON `gorm:"type:jsonb"`
	Error     string

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Session{}, &Capture{}, &Report{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
