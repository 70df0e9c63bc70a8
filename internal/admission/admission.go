// Package admission bounds how many expensive evaluation workflows may run
// concurrently. A caller must hold a ticket before starting a workflow and
// must release it afterward; tickets carry a lease so a crashed holder's
// slot is reclaimed once the lease expires.
package admission

import (
	"context"
	"time"
)

// DefaultLease is the ticket lease applied when callers pass a
// non-positive duration.
const DefaultLease = 5 * time.Minute

// DefaultPollInterval is how often a blocked Acquire re-checks the pool.
const DefaultPollInterval = 250 * time.Millisecond

// Ticket is a granted admission slot.
type Ticket struct {
	TicketID    string
	AcquiredAt  time.Time
	LeaseExpiry time.Time
}

// Stats is a point-in-time snapshot of pool utilization. Waiting counts
// blocked Acquire calls in this process only.
type Stats struct {
	Active  int `json:"active"`
	Max     int `json:"max"`
	Waiting int `json:"waiting"`
}

// Controller grants and reclaims admission tickets. Acquire blocks until a
// slot is free or ctx is done; exhaustion is bounded waiting, never an
// error. Release is idempotent and never blocks: releasing an unknown or
// already-released ticket is a no-op.
type Controller interface {
	Acquire(ctx context.Context, ticketID string, lease time.Duration) (*Ticket, error)
	Release(ticketID string) error
	Stats() (Stats, error)
}
