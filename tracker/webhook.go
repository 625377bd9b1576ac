package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"streamcast/models"
)

type webhookTarget struct {
	url     string
	headers map[string]string
}

// WebhookPayload is the JSON body POSTed on every state change.
type WebhookPayload struct {
	JobID     string                `json:"job_id"`
	Status    models.JobState       `json:"status"`
	URLs      *models.PublishedURLs `json:"urls,omitempty"`
	Error     string                `json:"error,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// Webhook notifies a per-job callback URL, falling back to a fixed URL for
// jobs that did not register one. Jobs with neither are skipped.
type Webhook struct {
	client     *http.Client
	defaultURL string

	mu      sync.Mutex
	targets map[string]webhookTarget
}

func NewWebhook(defaultURL string) *Webhook {
	return &Webhook{
		client:     &http.Client{Timeout: 30 * time.Second},
		defaultURL: defaultURL,
		targets:    make(map[string]webhookTarget),
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Register sets the callback for a job. It is forgotten after the terminal
// event has been sent.
func (w *Webhook) Register(jobID, url string, headers map[string]string) {
	if url == "" {
		return
	}
	w.mu.Lock()
	w.targets[jobID] = webhookTarget{url: url, headers: headers}
	w.mu.Unlock()
}

func (w *Webhook) target(jobID string, forget bool) (webhookTarget, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.targets[jobID]
	if forget {
		delete(w.targets, jobID)
	}
	if !ok && w.defaultURL != "" {
		return webhookTarget{url: w.defaultURL}, true
	}
	return t, ok
}

func (w *Webhook) SetProcessing(ctx context.Context, jobID string) error {
	return w.send(ctx, jobID, false, WebhookPayload{JobID: jobID, Status: models.JobStateProcessing})
}

func (w *Webhook) SetReady(ctx context.Context, jobID string, urls models.PublishedURLs) error {
	return w.send(ctx, jobID, true, WebhookPayload{JobID: jobID, Status: models.JobStateReady, URLs: &urls})
}

func (w *Webhook) SetFailed(ctx context.Context, jobID string, reason string) error {
	return w.send(ctx, jobID, true, WebhookPayload{JobID: jobID, Status: models.JobStateFailed, Error: reason})
}

func (w *Webhook) send(ctx context.Context, jobID string, terminal bool, payload WebhookPayload) error {
	t, ok := w.target(jobID, terminal)
	if !ok {
		return nil // No callback configured
	}
	payload.Timestamp = time.Now().Unix()

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Streamcast/1.0")
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}
