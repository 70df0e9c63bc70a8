package admission

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/vantor/schemacraft/internal/db"
	"github.com/vantor/schemacraft/internal/models"
	"gorm.io/gorm"
)

const mysqlErrDuplicateEntry = 1062

// Store is the database-backed Controller. The ticket table is the shared
// counter: every acquire runs in a transaction that reclaims expired
// leases, counts live tickets under a locking read, then inserts. The row
// locks serialize concurrent capacity checks, so two workers in separate
// processes can never both observe the last free slot and both insert.
// Blocked acquires poll; nothing orders waiters, but every poll observes
// releases and reclamations equally, so no waiter starves while slots keep
// freeing up.
type Store struct {
	db           *gorm.DB
	max          int
	pollInterval time.Duration
	waiting      atomic.Int64
}

// NewStore returns a Store admitting at most max concurrent tickets.
func NewStore(db *gorm.DB, max int, pollInterval time.Duration) *Store {
	if max < 1 {
		max = 1
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Store{db: db, max: max, pollInterval: pollInterval}
}

// Acquire blocks until a slot is granted or ctx is done.
func (s *Store) Acquire(ctx context.Context, ticketID string, lease time.Duration) (*Ticket, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("admission: ticket id is required")
	}
	if lease <= 0 {
		lease = DefaultLease
	}

	ticket, granted, err := s.tryAcquire(ticketID, lease)
	if err != nil {
		return nil, err
	}
	if granted {
		return ticket, nil
	}

	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	timer := time.NewTicker(s.pollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("admission: acquire %s: %w", ticketID, ctx.Err())
		case <-timer.C:
			ticket, granted, err := s.tryAcquire(ticketID, lease)
			if err != nil {
				return nil, err
			}
			if granted {
				return ticket, nil
			}
		}
	}
}

// tryAcquire makes one attempt to grant a ticket. Expired leases are
// reclaimed inside the same transaction that counts live tickets.
func (s *Store) tryAcquire(ticketID string, lease time.Duration) (*Ticket, bool, error) {
	var ticket *Ticket

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Where("lease_expiry <= ?", now).
			Delete(&models.AdmissionTicket{}).Error; err != nil {
			return fmt.Errorf("reclaim expired: %w", err)
		}

		// The same ticket id already holding a slot (a retry after a
		// partial failure, or the holder extending its lease) refreshes
		// instead of consuming a second slot, so this must run before the
		// capacity check counts the holder's own row.
		expiry := now.Add(lease)
		var existing models.AdmissionTicket
		err := db.LockForUpdate(tx).Where("ticket_id = ?", ticketID).First(&existing).Error
		if err == nil {
			if err := tx.Model(&models.AdmissionTicket{}).
				Where("ticket_id = ?", ticketID).
				Update("lease_expiry", expiry).Error; err != nil {
				return fmt.Errorf("refresh lease: %w", err)
			}
			ticket = &Ticket{TicketID: ticketID, AcquiredAt: existing.AcquiredAt, LeaseExpiry: expiry}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup ticket: %w", err)
		}

		// The capacity check must be a locking read. A plain snapshot
		// count lets two InnoDB transactions both observe N-1 live
		// tickets and both insert distinct primary keys without
		// conflict; FOR UPDATE blocks the second count until the first
		// transaction commits its insert.
		var active int64
		if err := db.LockForUpdate(tx).Model(&models.AdmissionTicket{}).Count(&active).Error; err != nil {
			return fmt.Errorf("count active: %w", err)
		}
		if active >= int64(s.max) {
			return nil
		}

		row := models.AdmissionTicket{
			TicketID:    ticketID,
			AcquiredAt:  now,
			LeaseExpiry: expiry,
		}
		if err := tx.Create(&row).Error; err != nil {
			// Two workers racing on one ticket id between the lookup and
			// the insert: treat the collision as a refresh.
			if isDuplicateKey(err) {
				if err := tx.Model(&models.AdmissionTicket{}).
					Where("ticket_id = ?", ticketID).
					Update("lease_expiry", expiry).Error; err != nil {
					return fmt.Errorf("refresh lease: %w", err)
				}
			} else {
				return fmt.Errorf("insert ticket: %w", err)
			}
		}
		ticket = &Ticket{TicketID: ticketID, AcquiredAt: now, LeaseExpiry: expiry}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("admission: acquire %s: %w", ticketID, err)
	}
	return ticket, ticket != nil, nil
}

// Release voids the ticket immediately. Unknown ids are a no-op.
func (s *Store) Release(ticketID string) error {
	result := s.db.Where("ticket_id = ?", ticketID).Delete(&models.AdmissionTicket{})
	if result.Error != nil {
		return fmt.Errorf("admission: release %s: %w", ticketID, result.Error)
	}
	return nil
}

// Stats reclaims expired leases and reports pool utilization.
func (s *Store) Stats() (Stats, error) {
	var active int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lease_expiry <= ?", time.Now()).
			Delete(&models.AdmissionTicket{}).Error; err != nil {
			return fmt.Errorf("reclaim expired: %w", err)
		}
		if err := tx.Model(&models.AdmissionTicket{}).Count(&active).Error; err != nil {
			return fmt.Errorf("count active: %w", err)
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("admission: stats: %w", err)
	}
	return Stats{Active: int(active), Max: s.max, Waiting: int(s.waiting.Load())}, nil
}

// Sweep deletes all expired tickets and returns how many were reclaimed.
// Reclamation also happens lazily in Acquire/Stats; the sweep keeps the
// table tidy when the pool sits idle.
func (s *Store) Sweep() (int64, error) {
	result := s.db.Where("lease_expiry <= ?", time.Now()).Delete(&models.AdmissionTicket{})
	if result.Error != nil {
		return 0, fmt.Errorf("admission: sweep: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// isDuplicateKey detects a primary-key collision on the ticket table for
// both production MySQL and the sqlite driver used in tests.
func isDuplicateKey(err error) bool {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
