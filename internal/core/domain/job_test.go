package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJob_RetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		backoff  time.Duration
		attempts int
		expected time.Duration
	}{
		{"no backoff", 0, 1, 0},
		{"first retry", time.Second, 1, time.Second},
		{"second retry doubles", time.Second, 2, 2 * time.Second},
		{"third retry", time.Second, 3, 4 * time.Second},
		{"capped", 10 * time.Minute, 5, MaxRetryDelay},
		{"large attempt count", time.Second, 64, MaxRetryDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := Job{Backoff: tt.backoff, Attempts: tt.attempts}
			assert.Equal(t, tt.expected, j.RetryDelay())
		})
	}
}

func TestJob_CanRetry(t *testing.T) {
	assert.True(t, Job{Attempts: 1, MaxAttempts: 3}.CanRetry())
	assert.False(t, Job{Attempts: 3, MaxAttempts: 3}.CanRetry())
	assert.False(t, Job{Attempts: 1, MaxAttempts: 1}.CanRetry())
}

func TestDefaultJobOptions(t *testing.T) {
	assert.Equal(t, 1, DefaultJobOptions(JobUpdateSearchRankings).MaxAttempts)
	assert.Equal(t, 1, DefaultJobOptions(JobAutoMerge).MaxAttempts)
	assert.Equal(t, 3, DefaultJobOptions(JobDetectDuplicates).MaxAttempts)
	assert.Equal(t, 3, DefaultJobOptions(JobCleanup).MaxAttempts)
	assert.Greater(t, DefaultJobOptions(JobDetectDuplicates).Backoff, time.Duration(0))
	assert.Less(t, DefaultJobOptions(JobUpdateSearchRankings).Priority,
		DefaultJobOptions(JobCleanup).Priority)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobPending.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}
