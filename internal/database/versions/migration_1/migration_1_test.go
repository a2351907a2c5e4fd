package migration_1

import (
	"testing"

	"camqc-backend/internal/database/versions/migration_0"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigration(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration_0.Migration(db))

	id := uuid.New()
	require.NoError(t, db.Create(&migration_0.Report{Id: id, SessionId: uuid.New(), Status: "COMPLETED"}).Error)

	require.NoError(t, Migration(db))
	assert.True(t, db.Migrator().HasColumn(&Report{}, "page_count"))

	var count int
	require.NoError(t, db.Table("reports").Select("page_count").Where("id = ?", id).Scan(&count).Error)
	assert.Equal(t, 0, count)

	require.NoError(t, Rollback(db))
	assert.False(t, db.Migrator().HasColumn(&Report{}, "page_count"))
}
