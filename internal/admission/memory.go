package admission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process Controller with the same semantics as Store. It
// serves single-node deployments and lets tests exercise blocking behavior
// deterministically with a tiny pool.
type Memory struct {
	mu           sync.Mutex
	tickets      map[string]Ticket
	max          int
	pollInterval time.Duration
	waiting      atomic.Int64
}

// NewMemory returns a Memory controller admitting at most max tickets.
func NewMemory(max int, pollInterval time.Duration) *Memory {
	if max < 1 {
		max = 1
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Memory{
		tickets:      make(map[string]Ticket),
		max:          max,
		pollInterval: pollInterval,
	}
}

// Acquire blocks until a slot is granted or ctx is done.
func (m *Memory) Acquire(ctx context.Context, ticketID string, lease time.Duration) (*Ticket, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("admission: ticket id is required")
	}
	if lease <= 0 {
		lease = DefaultLease
	}

	if t, ok := m.tryAcquire(ticketID, lease); ok {
		return t, nil
	}

	m.waiting.Add(1)
	defer m.waiting.Add(-1)

	timer := time.NewTicker(m.pollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("admission: acquire %s: %w", ticketID, ctx.Err())
		case <-timer.C:
			if t, ok := m.tryAcquire(ticketID, lease); ok {
				return t, nil
			}
		}
	}
}

func (m *Memory) tryAcquire(ticketID string, lease time.Duration) (*Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.reclaimLocked(now)

	if existing, ok := m.tickets[ticketID]; ok {
		existing.LeaseExpiry = now.Add(lease)
		m.tickets[ticketID] = existing
		return &existing, true
	}
	if len(m.tickets) >= m.max {
		return nil, false
	}

	t := Ticket{TicketID: ticketID, AcquiredAt: now, LeaseExpiry: now.Add(lease)}
	m.tickets[ticketID] = t
	return &t, true
}

// Release voids the ticket immediately. Unknown ids are a no-op.
func (m *Memory) Release(ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, ticketID)
	return nil
}

// Stats reclaims expired leases and reports pool utilization.
func (m *Memory) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reclaimLocked(time.Now())
	return Stats{Active: len(m.tickets), Max: m.max, Waiting: int(m.waiting.Load())}, nil
}

// reclaimLocked drops expired tickets. Callers must hold mu.
func (m *Memory) reclaimLocked(now time.Time) {
	for id, t := range m.tickets {
		if !t.LeaseExpiry.After(now) {
			delete(m.tickets, id)
		}
	}
}
