package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/vantor/schemacraft/internal/models"
)

// taskResult pairs a finished task with its execution error, if any.
type taskResult struct {
	taskID string
	err    error
}

// Run executes every pending task of the batch and blocks until all of
// them reach a terminal status. Tasks fan out as independent goroutines,
// each gated by the admission controller; no ordering between them is
// promised. Per-task failures are isolated — one bad artifact never aborts
// the rest of the batch — and the joined errors are returned for logging.
func (o *Orchestrator) Run(ctx context.Context, batchID string) error {
	var tasks []models.Task
	if err := o.db.Where("batch_id = ? AND status = ?", batchID, models.StatusPending).
		Find(&tasks).Error; err != nil {
		return fmt.Errorf("batch: load pending tasks for %s: %w", batchID, err)
	}
	if len(tasks) == 0 {
		return o.finalize(batchID)
	}

	if err := o.db.Model(&models.Batch{}).Where("id = ? AND status = ?", batchID, models.StatusPending).
		Update("status", models.StatusProcessing).Error; err != nil {
		return fmt.Errorf("batch: mark %s processing: %w", batchID, err)
	}

	results := make(chan taskResult, len(tasks))
	for _, t := range tasks {
		go func() {
			results <- taskResult{taskID: t.ID, err: o.executeTask(ctx, &t)}
		}()
	}

	var errs []error
	for range tasks {
		r := <-results
		if r.err != nil {
			log.Printf("batch: task %s: %v", r.taskID, r.err)
			errs = append(errs, fmt.Errorf("task %s: %w", r.taskID, r.err))
		}
	}
	return errors.Join(errs...)
}

// executeTask runs one task under admission control. The ticket is released
// on every exit path; even if release is missed by a crash, the lease
// expires and the controller reclaims the slot.
func (o *Orchestrator) executeTask(ctx context.Context, task *models.Task) error {
	acquireCtx, cancel := context.WithTimeout(ctx, o.acquireTimeout)
	defer cancel()

	if _, err := o.ctrl.Acquire(acquireCtx, task.ID, o.lease); err != nil {
		// Admission wait timed out: the slot was never granted, so there
		// is nothing to release. The task goes terminal so the batch can.
		markErr := o.markFailed(task, fmt.Sprintf("admission wait: %v", err))
		if markErr != nil {
			return errors.Join(err, markErr)
		}
		if finErr := o.finalize(task.BatchID); finErr != nil {
			return errors.Join(err, finErr)
		}
		return err
	}
	defer func() {
		if err := o.ctrl.Release(task.ID); err != nil {
			log.Printf("batch: release ticket %s: %v", task.ID, err)
		}
	}()

	if err := o.markProcessing(task); err != nil {
		return err
	}

	var b models.Batch
	if err := o.db.Select("description").First(&b, "id = ?", task.BatchID).Error; err != nil {
		return fmt.Errorf("batch: load %s: %w", task.BatchID, err)
	}

	out, evalErr := o.eval.Evaluate(ctx, EvalRequest{
		TaskID:      task.ID,
		BatchID:     task.BatchID,
		FileKey:     task.FileKey,
		Description: b.Description,
		StudentCode: task.StudentCode,
	})

	if evalErr != nil {
		if err := o.markFailed(task, evalErr.Error()); err != nil {
			return errors.Join(evalErr, err)
		}
	} else {
		if err := o.markCompleted(task, out); err != nil {
			return err
		}
	}

	if err := o.finalize(task.BatchID); err != nil {
		return err
	}
	return evalErr
}

func (o *Orchestrator) markProcessing(task *models.Task) error {
	now := time.Now()
	if err := o.db.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"status":     models.StatusProcessing,
		"started_at": now,
	}).Error; err != nil {
		return fmt.Errorf("batch: mark task %s processing: %w", task.ID, err)
	}
	task.Status = models.StatusProcessing
	task.StartedAt = &now
	return nil
}

func (o *Orchestrator) markCompleted(task *models.Task, out *EvalResult) error {
	now := time.Now()
	if err := o.db.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"status":      models.StatusCompleted,
		"score":       out.Score,
		"report":      out.Report,
		"finished_at": now,
	}).Error; err != nil {
		return fmt.Errorf("batch: mark task %s completed: %w", task.ID, err)
	}
	task.Status = models.StatusCompleted
	task.Score = &out.Score
	task.Report = out.Report
	task.FinishedAt = &now
	return nil
}

func (o *Orchestrator) markFailed(task *models.Task, reason string) error {
	now := time.Now()
	if err := o.db.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"status":      models.StatusFailed,
		"error":       reason,
		"finished_at": now,
	}).Error; err != nil {
		return fmt.Errorf("batch: mark task %s failed: %w", task.ID, err)
	}
	task.Status = models.StatusFailed
	task.Error = reason
	task.FinishedAt = &now
	return nil
}
