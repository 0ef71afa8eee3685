package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/CredencialAcceso/CredencialAcceso/internal/common/db"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// OpenTestDB opens a fresh in-memory SQLite database and migrates the given
// models. Each call gets its own shared-cache database so tests stay
// isolated.
func OpenTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("testdb-%d", dbSeq.Add(1))
	gormDB, err := db.NewSQLite("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if len(models) > 0 {
		if err := gormDB.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate test db: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}
