package models

import "time"

// RosterEntry records one student's membership in a class. Entries are
// seeded from configuration and treated as read-only by the matcher.
type RosterEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ClassCode   string `gorm:"size:32;not null;uniqueIndex:idx_class_student"`
	StudentCode string `gorm:"size:64;not null;uniqueIndex:idx_class_student"`
	Active      bool   `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
