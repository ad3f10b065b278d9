// Package analysis sends parsed records to the external threat-analysis
// service and turns its verdicts into alerts.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/verdict"
)

// MaxBatch is the largest number of records sent in one request.
const MaxBatch = 100

const maxResponseSize = 10 << 20

// ClientOptions configures the outbound call and its retry policy.
type ClientOptions struct {
	URL         string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration // per attempt; zero means no limit
	HTTPClient  *http.Client
}

// Analyzer judges a batch of records.
type Analyzer interface {
	Analyze(ctx context.Context, items []verdict.LogItem) (*verdict.Batch, error)
}

type Client struct {
	url         string
	maxAttempts int
	retryDelay  time.Duration
	timeout     time.Duration
	http        *http.Client
}

func NewClient(opts ClientOptions) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		url:         opts.URL,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		timeout:     opts.Timeout,
		http:        opts.HTTPClient,
	}
}

// Analyze posts items to the service. Any failed attempt (transport error,
// non-2xx status or undecodable body) is retried after a fixed delay until
// the attempt budget is spent, then an Unreachable error is returned.
// Cancelling ctx stops the loop at the next attempt boundary or during the
// delay.
func (c *Client) Analyze(ctx context.Context, items []verdict.LogItem) (*verdict.Batch, error) {
	const op = "analysis.Analyze"

	if len(items) == 0 {
		return nil, apperr.Errorf(apperr.NoData, op, "no records to analyze")
	}
	if len(items) > MaxBatch {
		return nil, apperr.Errorf(apperr.Validation, op, "batch of %d exceeds limit of %d", len(items), MaxBatch)
	}
	body, err := json.Marshal(items)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, apperr.E(apperr.Unreachable, op, fmt.Errorf("stopped after %d attempts: %w", attempt-1, err))
		}

		batch, err := c.post(ctx, body)
		if err == nil {
			if attempt > 1 {
				slog.Info("Analysis succeeded after retry", "source", "analysis", "attempt", attempt)
			}
			return batch, nil
		}
		lastErr = err
		slog.Warn("Analysis attempt failed", "source", "analysis",
			"attempt", attempt, "remaining", c.maxAttempts-attempt, "error", err.Error())

		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, c.retryDelay); err != nil {
			return nil, apperr.E(apperr.Unreachable, op, fmt.Errorf("stopped after %d attempts: %w", attempt, err))
		}
	}

	slog.Error("Analysis service unreachable", "source", "analysis", "attempts", c.maxAttempts)
	return nil, apperr.E(apperr.Unreachable, op,
		fmt.Errorf("analysis service unreachable after %d attempts: %w", c.maxAttempts, lastErr))
}

func (c *Client) post(ctx context.Context, body []byte) (*verdict.Batch, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data))
	}
	return verdict.Decode(data)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snippet(b []byte) string {
	const max = 200
	b = bytes.TrimSpace(b)
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
