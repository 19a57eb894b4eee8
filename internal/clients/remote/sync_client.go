package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/masad-stock/skillbridge-sub000/internal/pkg/httpx"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
)

// SyncClient is the single outbound call surface the sync queue drains
// against: one authenticated endpoint per queue-item type. Any non-success
// outcome is returned as an error; retry policy lives with the caller.
type SyncClient interface {
	SyncProgress(ctx context.Context, payload json.RawMessage) error
	SyncAssessment(ctx context.Context, payload json.RawMessage) error
	SyncCertificate(ctx context.Context, payload json.RawMessage) error
	SyncBusinessRecord(ctx context.Context, payload json.RawMessage) error
}

type syncClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

func NewSyncClient(baseURL, token string, timeout time.Duration, log *logger.Logger) SyncClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &syncClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("client", "SyncClient"),
	}
}

func (c *syncClient) SyncProgress(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/api/learning/progress", payload)
}

func (c *syncClient) SyncAssessment(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/api/assessments/results", payload)
}

func (c *syncClient) SyncCertificate(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/api/certificates/sync", payload)
}

func (c *syncClient) SyncBusinessRecord(ctx context.Context, payload json.RawMessage) error {
	return c.post(ctx, "/api/business/records", payload)
}

// post sends one JSON payload. A retryable status gets a single in-call
// retry honoring Retry-After; durable retries with backoff belong to the
// sync queue, not this client.
func (c *syncClient) post(ctx context.Context, path string, payload json.RawMessage) error {
	err := c.doPost(ctx, path, payload)
	if err == nil {
		return nil
	}
	if !httpx.IsRetryableError(err) || ctx.Err() != nil {
		return err
	}

	delay := httpx.JitterSleep(500 * time.Millisecond)
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		delay = httpx.RetryAfterDuration(statusErr.RetryAfter, delay, 5*time.Second)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return c.doPost(ctx, path, payload)
}

func (c *syncClient) doPost(ctx context.Context, path string, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sync payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpx.StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}
	return nil
}
