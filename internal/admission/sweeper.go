package admission

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// StartSweeper schedules periodic lease reclamation on a standard 5-field
// cron expression and returns the running scheduler. Stop it with
// (*cron.Cron).Stop on shutdown.
func StartSweeper(store *Store, expr string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		n, err := store.Sweep()
		if err != nil {
			log.Printf("admission: sweep: %v", err)
			return
		}
		if n > 0 {
			log.Printf("admission: sweep reclaimed %d expired ticket(s)", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("admission: schedule sweep %q: %w", expr, err)
	}
	c.Start()
	return c, nil
}
