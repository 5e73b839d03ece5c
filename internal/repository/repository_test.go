package repository_test

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amberapp/amber-core/internal/db"
)

// setupTestDB opens an isolated in-memory SQLite DB with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.User{}, &db.UserPreference{}, &db.Block{}, &db.Like{}, &db.Match{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}
