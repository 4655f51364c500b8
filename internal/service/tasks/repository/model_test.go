package repository

import (
	"testing"
	"time"

	"leadgen/internal/pkg/worker"

	"github.com/stretchr/testify/assert"
)

func TestFromTaskInfo(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	started := created.Add(time.Second)
	done := started.Add(2 * time.Second)
	archived := done.Add(24 * time.Hour)

	row := fromTaskInfo(worker.TaskInfo{
		ID:           "b2b_export-1-1",
		Name:         "b2b_export",
		Priority:     worker.PriorityHigh,
		Status:       worker.StatusFailed,
		Args:         worker.Args{"lead_id": 7},
		ErrorMessage: "partner rejected lead",
		RetryCount:   3,
		MaxRetries:   3,
		CreatedAt:    created,
		StartedAt:    &started,
		CompletedAt:  &done,
	}, archived)

	assert.Equal(t, "b2b_export-1-1", row.TaskID)
	assert.Equal(t, "high", row.Priority)
	assert.Equal(t, "failed", row.Status)
	assert.JSONEq(t, `{"lead_id":7}`, row.Args)
	assert.Equal(t, "null", row.Result)
	assert.Equal(t, 3, row.RetryCount)
	assert.Equal(t, created, row.SubmittedAt)
	assert.Equal(t, &done, row.CompletedAt)
	assert.Equal(t, archived, row.ArchivedAt)
	assert.Equal(t, "background_task_archive", TaskArchive{}.TableName())
}

func TestEncodeJSON_Unencodable(t *testing.T) {
	assert.Equal(t, "null", encodeJSON(make(chan int)))
	assert.Equal(t, `"ok"`, encodeJSON("ok"))
}
