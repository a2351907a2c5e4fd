package migration_2

import (
	"fmt"

	"gorm.io/gorm"
)

// Report gains a counter of render attempts; retries bump it.
type Report struct {
	Attempts int `gorm:"not null;default:0"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Report{}, "Attempts"); err != nil {
		return fmt.Errorf("error adding attempts column: %w", err)
	}

	// reports that already ran count as one attempt
	if err := db.Table("reports").
		Where("status <> ?", "QUEUED").
		Update("attempts", 1).Error; err != nil {
		return fmt.Errorf("error backfilling attempts: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Report{}, "Attempts"); err != nil {
		return fmt.Errorf("error dropping attempts column: %w", err)
	}
	return nil
}
