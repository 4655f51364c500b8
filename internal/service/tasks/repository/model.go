package repository

import (
	"encoding/json"
	"time"

	"leadgen/internal/pkg/worker"
)

// TaskArchive is a terminal task record evicted from the in-memory registry
type TaskArchive struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TaskID       string     `gorm:"column:task_id;size:255;uniqueIndex;not null" json:"task_id"`
	Name         string     `gorm:"size:128;index;not null" json:"name"`
	Priority     string     `gorm:"size:16;not null" json:"priority"`
	Status       string     `gorm:"size:16;index;not null" json:"status"`
	Args         string     `gorm:"type:jsonb" json:"args,omitempty"`
	Result       string     `gorm:"type:jsonb" json:"result,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	SubmittedAt  time.Time  `gorm:"not null" json:"submitted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `gorm:"index" json:"completed_at,omitempty"`
	ArchivedAt   time.Time  `gorm:"not null;index" json:"archived_at"`
}

// TableName specifies the table name
func (TaskArchive) TableName() string {
	return "background_task_archive"
}

// fromTaskInfo converts a snapshot into an archive row. Args and results that
// cannot be encoded are stored as null rather than failing the batch.
func fromTaskInfo(info worker.TaskInfo, archivedAt time.Time) *TaskArchive {
	return &TaskArchive{
		TaskID:       info.ID,
		Name:         info.Name,
		Priority:     info.Priority.String(),
		Status:       string(info.Status),
		Args:         encodeJSON(info.Args),
		Result:       encodeJSON(info.Result),
		ErrorMessage: info.ErrorMessage,
		RetryCount:   info.RetryCount,
		MaxRetries:   info.MaxRetries,
		SubmittedAt:  info.CreatedAt,
		StartedAt:    info.StartedAt,
		CompletedAt:  info.CompletedAt,
		ArchivedAt:   archivedAt,
	}
}

func encodeJSON(v interface{}) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
