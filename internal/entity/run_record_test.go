package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunRecord(t *testing.T) {
	id := uuid.New()
	startedAt := time.Now()
	rec := NewRunRecord(id, startedAt)

	assert.Equal(t, id, rec.ID)
	assert.Equal(t, RunStatusInProgress, rec.Status)
	assert.Equal(t, startedAt, rec.StartedAt)
	assert.Nil(t, rec.CompletedAt)
}

func TestRunRecordMarkCompleted(t *testing.T) {
	rec := NewRunRecord(uuid.New(), time.Now())
	completedAt := time.Now().Add(time.Minute)

	rec.MarkCompleted(completedAt, 3, 7, 2)

	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, RunStatusCompleted, rec.Status)
	assert.Equal(t, completedAt, *rec.CompletedAt)
	assert.Equal(t, 3, rec.PassesExecuted)
	assert.Equal(t, 7, rec.JobsScheduled)
	assert.Equal(t, 2, rec.JobsPendingReview)
	assert.Nil(t, rec.ErrorMessage)
}

func TestRunRecordMarkFailed(t *testing.T) {
	rec := NewRunRecord(uuid.New(), time.Now())
	completedAt := time.Now().Add(time.Minute)

	rec.MarkFailed(completedAt, 1, errors.New("optimizer returned status=error"))

	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, RunStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.PassesExecuted)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "optimizer returned status=error", *rec.ErrorMessage)
}
