package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/metrics"
)

const userAgent = "hookline-scheduler/1.0"

// maxResponseBytes caps how much of a response body is read into memory.
// The recorder truncates further before persisting.
const maxResponseBytes = 64 << 10

// RetryPolicy controls re-attempts after a retryable failure. The default is
// zero extra attempts; operators enable retries through configuration.
type RetryPolicy struct {
	MaxRetries int           // extra attempts after the first
	Delay      time.Duration // fixed wait between attempts
}

// DispatchResult is the classified outcome of one dispatch attempt sequence.
type DispatchResult struct {
	Success    bool
	Skipped    bool // schedule was paused; nothing was sent
	StatusCode *int // nil when no response was received
	Body       string
	Err        error
	Duration   time.Duration
	Attempts   int

	retryable bool
}

// Dispatcher builds and sends exactly one HTTP attempt sequence per schedule
// fire, applying the schedule's auth, headers and timeout.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
	policy RetryPolicy
}

func NewDispatcher(logger *slog.Logger, policy RetryPolicy) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{}, // no global timeout, each schedule sets its own
		logger: logger.With("component", "dispatcher"),
		policy: policy,
	}
}

// Dispatch runs the bounded retry loop around single attempts. A 4xx status
// is terminal; transport errors and 5xx statuses are retryable up to the
// policy's ceiling.
func (d *Dispatcher) Dispatch(ctx context.Context, s *domain.Schedule) DispatchResult {
	var res DispatchResult
	for attempt := 0; ; attempt++ {
		res = d.attempt(ctx, s)
		res.Attempts = attempt + 1
		if res.Success || !res.retryable || attempt >= d.policy.MaxRetries {
			return res
		}

		d.logger.Warn("dispatch attempt failed, retrying",
			"schedule_id", s.ID,
			"attempt", attempt+1,
			"max_retries", d.policy.MaxRetries,
			"status", statusOrZero(res.StatusCode),
			"error", res.Err,
		)
		metrics.WebhookRetriesTotal.Inc()

		select {
		case <-ctx.Done():
			return res
		case <-time.After(d.policy.Delay):
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, s *domain.Schedule) DispatchResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	method := strings.ToUpper(s.HTTPMethod)
	if method == "" {
		method = http.MethodPost
	}

	var bodyReader io.Reader
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		body := s.JSONBody
		if body == "" {
			body = "{}"
		} else if !json.Valid([]byte(body)) {
			d.logger.Warn("invalid JSON body, sending empty object", "schedule_id", s.ID)
			body = "{}"
		}
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.WebhookURL, bodyReader)
	if err != nil {
		// A malformed URL or method never becomes valid on retry.
		return DispatchResult{Err: fmt.Errorf("build request: %w", err), Duration: time.Since(start)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	applyAuthHeaders(req, s)
	d.applyCustomHeaders(req, s)

	resp, err := d.client.Do(req)
	if err != nil {
		// Covers connection refused, timeout, DNS failure and reset.
		return DispatchResult{
			Err:       fmt.Errorf("do request: %w", err),
			Duration:  time.Since(start),
			retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused

	code := resp.StatusCode
	return DispatchResult{
		Success:    code >= 200 && code < 400,
		StatusCode: &code,
		Body:       string(body),
		Duration:   time.Since(start),
		retryable:  code >= http.StatusInternalServerError,
	}
}

// applyAuthHeaders injects the schedule's auth variant. Incomplete
// credentials mean no header, never a partial one.
func applyAuthHeaders(req *http.Request, s *domain.Schedule) {
	switch s.AuthType {
	case domain.AuthBearer:
		if s.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.AuthToken)
		}
	case domain.AuthAPIKey:
		if s.AuthAPIKeyName != "" && s.AuthAPIKeyValue != "" {
			req.Header.Set(s.AuthAPIKeyName, s.AuthAPIKeyValue)
		}
	case domain.AuthBasic:
		if s.AuthUsername != "" && s.AuthPassword != "" {
			req.SetBasicAuth(s.AuthUsername, s.AuthPassword)
		}
	}
}

// applyCustomHeaders runs after auth so user-supplied headers may override
// the injected ones. Entries with an empty key or value are skipped.
func (d *Dispatcher) applyCustomHeaders(req *http.Request, s *domain.Schedule) {
	if s.CustomHeaders == "" {
		return
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(s.CustomHeaders), &headers); err != nil {
		d.logger.Warn("invalid custom headers JSON, ignoring", "schedule_id", s.ID)
		return
	}
	for k, v := range headers {
		if k == "" || v == "" {
			continue
		}
		req.Header.Set(k, v)
	}
}

func statusOrZero(code *int) int {
	if code == nil {
		return 0
	}
	return *code
}
