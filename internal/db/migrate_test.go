package db

import (
	"testing"

	"github.com/vantor/schemacraft/internal/config"
	"github.com/vantor/schemacraft/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMigrateTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// Each pooled :memory: connection is its own database; pin the pool.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb
}

func TestAutoMigrate(t *testing.T) {
	gdb := openMigrateTestDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestSeedRoster_InsertsAndUpserts(t *testing.T) {
	gdb := openMigrateTestDB(t)
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	inactive := false
	classes := []config.ClassConfig{
		{
			Code: "CS101",
			Roster: []config.RosterSeedRow{
				{StudentCode: "ST001"},
				{StudentCode: "ST002"},
			},
		},
	}
	if err := SeedRoster(gdb, classes); err != nil {
		t.Fatalf("SeedRoster: %v", err)
	}

	var count int64
	gdb.Model(&models.RosterEntry{}).Count(&count)
	if count != 2 {
		t.Fatalf("entries = %d, want 2", count)
	}

	// Re-seeding with ST002 deactivated updates in place, no duplicate.
	classes[0].Roster[1].Active = &inactive
	if err := SeedRoster(gdb, classes); err != nil {
		t.Fatalf("re-SeedRoster: %v", err)
	}
	gdb.Model(&models.RosterEntry{}).Count(&count)
	if count != 2 {
		t.Errorf("entries after reseed = %d, want 2", count)
	}

	var entry models.RosterEntry
	if err := gdb.Where("class_code = ? AND student_code = ?", "CS101", "ST002").First(&entry).Error; err != nil {
		t.Fatalf("load ST002: %v", err)
	}
	if entry.Active {
		t.Error("ST002 should be inactive after reseed")
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{Host: "db", Port: 3307, User: "craft", Password: "pw", Database: "sc"})
	want := "craft:pw@tcp(db:3307)/sc?parseTime=true&charset=utf8mb4"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}

	dsn = DSN(config.DBConfig{Host: "db", Port: 3306, User: "root", Database: "sc"})
	if dsn != "root@tcp(db:3306)/sc?parseTime=true&charset=utf8mb4" {
		t.Errorf("DSN without password = %q", dsn)
	}
}
