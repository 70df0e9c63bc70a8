package db

import (
	"fmt"

	"github.com/vantor/schemacraft/internal/config"
	"github.com/vantor/schemacraft/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
		&models.Batch{},
		&models.Task{},
		&models.AdmissionTicket{},
		&models.RosterEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedRoster upserts RosterEntry rows from configuration. Students removed
// from config are left in place; deactivate them with active: false instead.
func SeedRoster(db *gorm.DB, classes []config.ClassConfig) error {
	for _, cl := range classes {
		for _, row := range cl.Roster {
			active := true
			if row.Active != nil {
				active = *row.Active
			}
			entry := models.RosterEntry{
				ClassCode:   cl.Code,
				StudentCode: row.StudentCode,
				Active:      active,
			}
			result := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "class_code"}, {Name: "student_code"}},
				DoUpdates: clause.AssignmentColumns([]string{"active"}),
			}).Create(&entry)
			if result.Error != nil {
				return fmt.Errorf("db: seed roster %s/%s: %w", cl.Code, row.StudentCode, result.Error)
			}
		}
	}
	return nil
}
