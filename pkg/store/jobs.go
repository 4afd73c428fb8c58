package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// Job statuses tracked in the jobs table.
const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ErrNoJobsAvailable is returned by ClaimNextJob when the pending queue is
// empty.
var ErrNoJobsAvailable = errors.New("no jobs available")

// EnqueueJob inserts a new pending job, backing the HTTP ingress's
// enqueue-and-202 contract.
func (c *Client) EnqueueJob(ctx context.Context, job models.Job) error {
	callbackJSON, err := json.Marshal(job.CallbackDetails)
	if err != nil {
		return fmt.Errorf("marshal callback_details: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO jobs (task_id, user_id, session_id, user_input, callback_details, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.TaskID, job.UserID, job.SessionID, job.UserInput, callbackJSON, JobStatusPending,
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob atomically claims the oldest pending job for workerID using
// SELECT ... FOR UPDATE SKIP LOCKED, so concurrent workers never claim the
// same row twice. Returns ErrNoJobsAvailable when the queue is empty.
func (c *Client) ClaimNextJob(ctx context.Context, workerID string) (models.Job, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Job{}, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		job          models.Job
		callbackJSON []byte
	)
	err = tx.QueryRowContext(ctx, `
		SELECT task_id, user_id, session_id, user_input, callback_details
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, JobStatusPending,
	).Scan(&job.TaskID, &job.UserID, &job.SessionID, &job.UserInput, &callbackJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Job{}, ErrNoJobsAvailable
		}
		return models.Job{}, fmt.Errorf("query next pending job: %w", err)
	}

	if err := json.Unmarshal(callbackJSON, &job.CallbackDetails); err != nil {
		return models.Job{}, fmt.Errorf("unmarshal callback_details: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $1, claimed_by = $2, claimed_at = $3, last_heartbeat = $3, attempts = attempts + 1
		WHERE task_id = $4`,
		JobStatusInProgress, workerID, now, job.TaskID,
	); err != nil {
		return models.Job{}, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Job{}, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

// Heartbeat refreshes last_heartbeat for a job a worker is still actively
// processing, so RequeueOrphans does not mistake live work for a crash.
func (c *Client) Heartbeat(ctx context.Context, taskID string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE jobs SET last_heartbeat = $1 WHERE task_id = $2`, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("heartbeat job %s: %w", taskID, err)
	}
	return nil
}

// MarkJobTerminal records a job's final status.
func (c *Client) MarkJobTerminal(ctx context.Context, taskID, status, errMsg string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, completed_at = $2, error_message = $3 WHERE task_id = $4`,
		status, time.Now().UTC(), errMsg, taskID,
	)
	if err != nil {
		return fmt.Errorf("mark job %s terminal: %w", taskID, err)
	}
	return nil
}

// CountActiveJobs reports how many jobs are currently in_progress,
// regardless of claiming worker — used for the pool's global capacity
// check.
func (c *Client) CountActiveJobs(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE status = $1`, JobStatusInProgress).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// CountPendingJobs reports queue depth, surfaced in the worker pool's
// health payload.
func (c *Client) CountPendingJobs(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE status = $1`, JobStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

// RequeueOrphans resets back to pending every in_progress job whose
// last_heartbeat is older than staleThreshold — the pod that claimed it
// crashed or was killed mid-execution — and returns how many were
// recovered.
func (c *Client) RequeueOrphans(ctx context.Context, staleThreshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-staleThreshold)
	res, err := c.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, claimed_by = NULL, claimed_at = NULL, last_heartbeat = NULL
		WHERE status = $2 AND last_heartbeat < $3`,
		JobStatusPending, JobStatusInProgress, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue orphaned jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count requeued jobs: %w", err)
	}
	return int(affected), nil
}
