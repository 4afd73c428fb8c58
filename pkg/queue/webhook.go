package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// deliverWebhook POSTs payload to job.CallbackDetails.WebhookURL under
// timeout, unconditionally — called from the worker's finally-equivalent
// path regardless of whether the job succeeded or failed. A missing URL
// or a delivery failure is logged and swallowed: the job's terminal
// status is already durable in the jobs table.
func deliverWebhook(ctx context.Context, client *http.Client, job models.Job, payload models.WebhookPayload, timeout time.Duration) {
	if job.CallbackDetails.WebhookURL == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal webhook payload", "task_id", job.TaskID, "error", err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, job.CallbackDetails.WebhookURL, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build webhook request", "task_id", job.TaskID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("webhook delivery failed", "task_id", job.TaskID, "webhook_url", job.CallbackDetails.WebhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.Warn("webhook endpoint returned an error status", "task_id", job.TaskID, "status", resp.StatusCode)
		return
	}

	slog.Info("webhook delivered", "task_id", job.TaskID, "status", fmt.Sprint(payload.Status))
}
