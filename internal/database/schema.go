package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionActive    string = "ACTIVE"
	SessionFinished  string = "FINISHED"
	SessionAbandoned string = "ABANDONED"
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

	Markers      datatypes.JSON `gorm:"type:jsonb"` // [{"label":"A","x":..,"y":..,"angle":..,"note":".."}]
	BarcodeScans datatypes.JSON `gorm:"type:jsonb"`

	Timestamp time.Time
}

const (
	ReportQueued    string = "QUEUED"
	ReportRunning   string = "RUNNING"
	ReportCompleted string = "COMPLETED"
	ReportFailed    string = "FAILED"
)

type Report struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID `gorm:"type:uuid;index"`
	Session   *Session  `gorm:"foreignKey:SessionId"`

	Status string `gorm:"size:20;not null"`

	PdfPath   string
	DocxPath  string
	PdfKey    string
	DocxKey   string
	PageCount int `gorm:"default:0"`
	Attempts  int `gorm:"not null;default:0"`

	Checklist datatypes.JSON `gorm:"type:jsonb"`
	Error     string

	CreationTime   time.Time
	CompletionTime sql.NullTime
}
