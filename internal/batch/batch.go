// Package batch creates grading batches and drives per-task evaluation
// under admission control.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/vantor/schemacraft/internal/admission"
	"github.com/vantor/schemacraft/internal/db"
	"github.com/vantor/schemacraft/internal/models"
	"github.com/vantor/schemacraft/internal/roster"
	"gorm.io/gorm"
)

// Evaluator is the external per-task evaluation workflow.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (*EvalResult, error)
}

// EvalRequest identifies one artifact to evaluate.
type EvalRequest struct {
	TaskID      string `json:"taskId"`
	BatchID     string `json:"batchId"`
	FileKey     string `json:"fileKey"`
	Description string `json:"description"`
	StudentCode string `json:"studentCode,omitempty"`
}

// EvalResult is the evaluation workflow's verdict for one artifact.
type EvalResult struct {
	Score  float64 `json:"score"`
	Report string  `json:"report"`
}

// InvalidBatchError rejects a whole identity-tagged batch: one bad filename
// or unknown student fails creation and nothing is persisted.
type InvalidBatchError struct {
	Invalid []roster.InvalidFile
}

func (e *InvalidBatchError) Error() string {
	return fmt.Sprintf("batch: %d file(s) failed validation", len(e.Invalid))
}

// Orchestrator owns all Batch/Task mutations. Task execution is gated by
// the admission controller so at most N evaluations run at once across all
// worker processes.
type Orchestrator struct {
	db             *gorm.DB
	ctrl           admission.Controller
	eval           Evaluator
	roster         roster.Roster
	matcher        *roster.Matcher
	lease          time.Duration
	acquireTimeout time.Duration
}

// Opts configures an Orchestrator.
type Opts struct {
	DB             *gorm.DB
	Controller     admission.Controller
	Evaluator      Evaluator
	Roster         roster.Roster
	Matcher        *roster.Matcher
	Lease          time.Duration // admission ticket lease per task
	AcquireTimeout time.Duration // how long a task waits for a slot
}

// New returns an Orchestrator.
func New(opts Opts) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("batch: db is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("batch: admission controller is required")
	}
	if opts.Evaluator == nil {
		return nil, fmt.Errorf("batch: evaluator is required")
	}
	if opts.Matcher == nil {
		opts.Matcher = roster.NewMatcher(nil)
	}
	if opts.Lease <= 0 {
		opts.Lease = admission.DefaultLease
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		db:             opts.DB,
		ctrl:           opts.Controller,
		eval:           opts.Evaluator,
		roster:         opts.Roster,
		matcher:        opts.Matcher,
		lease:          opts.Lease,
		acquireTimeout: opts.AcquireTimeout,
	}, nil
}

// CreateOpts holds parameters for creating a batch.
type CreateOpts struct {
	OwnerID     string
	Description string
	FileKeys    []string
	ClassCode   string // optional; when set, every file must match the roster
}

// Create validates and persists a batch with one pending task per file key.
// For identity-tagged batches, roster validation runs first and any invalid
// file rejects the whole call before anything is written. Execution is
// triggered separately via Run.
func (o *Orchestrator) Create(opts CreateOpts) (*models.Batch, error) {
	if opts.OwnerID == "" {
		return nil, fmt.Errorf("batch: owner id is required")
	}
	if len(opts.FileKeys) == 0 {
		return nil, fmt.Errorf("batch: at least one file key is required")
	}

	studentCodes := make([]string, len(opts.FileKeys))
	if opts.ClassCode != "" {
		if o.roster == nil {
			return nil, fmt.Errorf("batch: roster is required for class batches")
		}
		entries, err := o.roster.Lookup(opts.ClassCode)
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
		filenames := make([]string, len(opts.FileKeys))
		for i, key := range opts.FileKeys {
			filenames[i] = path.Base(key)
		}
		v := o.matcher.ValidateBatch(filenames, opts.ClassCode, entries)
		if !v.OK() {
			return nil, &InvalidBatchError{Invalid: v.Invalid}
		}
		studentCodes = v.StudentCodes
	}

	b := &models.Batch{
		ID:          uuid.NewString(),
		OwnerID:     opts.OwnerID,
		Description: opts.Description,
		ClassCode:   opts.ClassCode,
		Status:      models.StatusPending,
	}
	err := o.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		for i, key := range opts.FileKeys {
			task := models.Task{
				ID:          uuid.NewString(),
				BatchID:     b.ID,
				FileKey:     key,
				StudentCode: studentCodes[i],
				Status:      models.StatusPending,
			}
			if err := tx.Create(&task).Error; err != nil {
				return fmt.Errorf("create task for %s: %w", key, err)
			}
			b.Tasks = append(b.Tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: create: %w", err)
	}
	return b, nil
}

// Get returns a batch with its tasks, enforcing ownership.
func (o *Orchestrator) Get(batchID, ownerID string) (*models.Batch, error) {
	var b models.Batch
	if err := o.db.Preload("Tasks").First(&b, "id = ?", batchID).Error; err != nil {
		return nil, fmt.Errorf("batch: load %s: %w", batchID, err)
	}
	if b.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return &b, nil
}

// ErrNotOwner is returned when a caller addresses a batch they do not own.
var ErrNotOwner = errors.New("batch: caller does not own this batch")

// finalize recomputes the batch aggregate from the full set of tasks. The
// average covers completed tasks only, and the batch goes terminal only
// once no task is pending or processing — failed only when every task
// failed. Recomputing from scratch keeps the result correct whatever order
// tasks finish in.
func (o *Orchestrator) finalize(batchID string) error {
	err := o.db.Transaction(func(tx *gorm.DB) error {
		// Lock the batch row before reading the tasks: two tasks
		// finishing together must not interleave one finalize's task
		// snapshot with the other's update, or the batch could go
		// terminal carrying an average that misses the later score.
		var locked models.Batch
		if err := db.LockForUpdate(tx).First(&locked, "id = ?", batchID).Error; err != nil {
			return fmt.Errorf("lock batch: %w", err)
		}

		var tasks []models.Task
		if err := tx.Where("batch_id = ?", batchID).Find(&tasks).Error; err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}

		var (
			sum       float64
			completed int
			failed    int
			terminal  = true
		)
		for _, t := range tasks {
			switch t.Status {
			case models.StatusCompleted:
				completed++
				if t.Score != nil {
					sum += *t.Score
				}
			case models.StatusFailed:
				failed++
			default:
				terminal = false
			}
		}

		updates := map[string]interface{}{}
		if completed > 0 {
			avg := sum / float64(completed)
			updates["average_score"] = avg
		}
		if terminal {
			status := models.StatusCompleted
			if failed == len(tasks) {
				status = models.StatusFailed
			}
			updates["status"] = status
			updates["completed_at"] = time.Now()
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Batch{}).Where("id = ?", batchID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch: finalize %s: %w", batchID, err)
	}
	return nil
}
