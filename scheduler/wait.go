package scheduler

import (
	"context"
	"time"

	"github.com/lifelog/core/lifelog"
)

// WaitForJobCompletion polls store for job's terminal status. Returns the
// final Job on success, or a lifelog.KindTimeout error if timeout elapses
// first.
func WaitForJobCompletion(ctx context.Context, store JobStore, jobID string, timeout, pollInterval time.Duration) (*Job, error) {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := store.Get(deadlineCtx, jobID)
		if err != nil {
			return nil, lifelog.Wrap(lifelog.KindNotFound, "job lookup failed", err)
		}
		if isTerminal(job.Status) {
			return job, nil
		}

		select {
		case <-deadlineCtx.Done():
			return job, lifelog.New(lifelog.KindTimeout, "timed out waiting for job completion")
		case <-ticker.C:
		}
	}
}

func isTerminal(s Status) bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
