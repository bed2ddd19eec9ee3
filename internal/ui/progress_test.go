package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/stretchr/testify/assert"
)

func TestBatchProgressRunning(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := txqueue.RapidBatch{
		Config:    txqueue.BatchConfig{Delay: time.Second},
		Total:     10,
		Completed: 4,
		BaseNonce: 42,
		StartTime: start,
		State:     txqueue.BatchRunning,
	}
	line := BatchProgress(b, start.Add(8*time.Second), 0)
	assert.Contains(t, line, "4/10")
	assert.Contains(t, line, "nonce 42…51")
	assert.Contains(t, line, "~18s left")
	assert.Contains(t, line, "████████░")
}

func TestBatchProgressFinalStates(t *testing.T) {
	b := txqueue.RapidBatch{Total: 5, Completed: 5, State: txqueue.BatchCompleted}
	assert.Contains(t, BatchProgress(b, time.Now(), 0), "completed")

	b = txqueue.RapidBatch{Total: 5, Completed: 2, State: txqueue.BatchStopped}
	assert.Contains(t, BatchProgress(b, time.Now(), 0), "stopped")

	b = txqueue.RapidBatch{Total: 5, Completed: 2, State: txqueue.BatchFailed, Err: errors.New("boom: insufficient funds for gas")}
	line := BatchProgress(b, time.Now(), 0)
	assert.Contains(t, line, "failed")
	assert.Contains(t, line, "insufficient funds")
}

func TestBatchProgressBeforeFirstSubmission(t *testing.T) {
	b := txqueue.RapidBatch{Total: 3, State: txqueue.BatchRunning}
	line := BatchProgress(b, time.Now(), 3)
	assert.Contains(t, line, "0/3")
	assert.Contains(t, line, "reserving nonces")
	assert.NotContains(t, line, "nonce 0…")
}
