package roster

import (
	"fmt"

	"github.com/vantor/schemacraft/internal/models"
	"gorm.io/gorm"
)

// Roster looks up the membership of one class. The entries are read-only
// input to the matcher.
type Roster interface {
	Lookup(classCode string) ([]models.RosterEntry, error)
}

// GormRoster reads roster entries from the database, where they are seeded
// from configuration at db init time.
type GormRoster struct {
	db *gorm.DB
}

// NewGormRoster returns a database-backed Roster.
func NewGormRoster(db *gorm.DB) *GormRoster {
	return &GormRoster{db: db}
}

// Lookup returns every roster entry for the class, active or not.
func (r *GormRoster) Lookup(classCode string) ([]models.RosterEntry, error) {
	var entries []models.RosterEntry
	if err := r.db.Where("class_code = ?", classCode).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("roster: lookup class %s: %w", classCode, err)
	}
	return entries, nil
}
