package migration_1

import (
	"fmt"

	"gorm.io/gorm"
)

type Report struct {
	PageCount int `gorm:"default:0"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Report{}, "PageCount"); err != nil {
		return fmt.Errorf("error adding page_count column: %w", err)
	}

	if err := db.Model(&Report{}).
		Where("page_count IS NULL").
		Update("page_count", 0).Error; err != nil {
		return fmt.Errorf("error setting default page_count: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Report{}, "PageCount"); err != nil {
		return fmt.Errorf("error dropping page_count column: %w", err)
	}
	return nil
}
