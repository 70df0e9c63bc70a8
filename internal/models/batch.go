package models

import "time"

// Status values shared by Batch and Task.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Batch groups the uploaded artifacts of one grading run. AverageScore is
// recomputed over completed tasks every time a task reaches a terminal
// status; the batch itself goes terminal only once every task has.
type Batch struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	OwnerID      string     `gorm:"size:64;not null;index" json:"ownerId"`
	Description  string     `gorm:"type:text" json:"description"`
	ClassCode    string     `gorm:"size:32;index" json:"classCode,omitempty"`
	Status       string     `gorm:"size:16;default:pending;index" json:"status"`
	AverageScore *float64   `json:"averageScore,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	Tasks []Task `gorm:"foreignKey:BatchID" json:"tasks,omitempty"`
}

// Task is one artifact evaluation within a batch.
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	BatchID     string     `gorm:"size:36;not null;index" json:"batchId"`
	FileKey     string     `gorm:"size:512;not null" json:"fileKey"`
	StudentCode string     `gorm:"size:64;index" json:"studentCode,omitempty"`
	Status      string     `gorm:"size:16;default:pending;index" json:"status"`
	Score       *float64   `json:"score,omitempty"`
	Report      string     `gorm:"type:text" json:"report,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Terminal reports whether the task has finished, successfully or not.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
