package models

import "time"

// AdmissionTicket is a time-leased permit to run one expensive evaluation.
// At most N unexpired rows exist at a time; expired rows are reclaimed lazily
// on the next acquire/stats and by the periodic sweeper, so a crashed holder
// can never permanently shrink the pool.
type AdmissionTicket struct {
	TicketID    string    `gorm:"primaryKey;size:64"`
	AcquiredAt  time.Time `gorm:"not null"`
	LeaseExpiry time.Time `gorm:"not null;index"`
}
