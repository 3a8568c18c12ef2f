package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/fetchpipe/internal/metrics"
)

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 2 * time.Second

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomePermanent
)

// attemptOutcome is the result of one GET, inspected by the retry loop.
type attemptOutcome struct {
	kind    outcomeKind
	result  Result
	failure *Failure
	status  int
}

// FetcherConfig controls per-attempt behaviour.
type FetcherConfig struct {
	Timeout time.Duration
	Policy  RetryPolicy

	// MaxBodyBytes is the client's body limit. Bodies that reach this size
	// are flagged as possibly truncated when they fail to decode.
	MaxBodyBytes int
}

// Fetcher performs "fetch URL, retry per policy, parse JSON" for one URL at a time.
// It is safe for concurrent use when its collaborators are.
type Fetcher struct {
	client  HTTPClient
	clock   Clock
	limiter Limiter
	policy  RetryPolicy
	timeout time.Duration
	maxBody int
	logger  *zap.Logger
}

// NewFetcher constructs a Fetcher. limiter may be nil.
func NewFetcher(client HTTPClient, clock Clock, limiter Limiter, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Policy.MaxAttempts() <= 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	return &Fetcher{
		client:  client,
		clock:   clock,
		limiter: limiter,
		policy:  cfg.Policy,
		timeout: cfg.Timeout,
		maxBody: cfg.MaxBodyBytes,
		logger:  logger,
	}
}

// Fetch runs up to MaxAttempts attempts for rawURL and reports the outcome.
// Failures are logged here and never returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Report {
	report := Report{URL: rawURL}
	maxAttempts := f.policy.MaxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out := f.attempt(ctx, rawURL, attempt)
		report.Attempts = attempt
		if out.status != 0 {
			report.StatusCode = out.status
		}

		switch out.kind {
		case outcomeSuccess:
			metrics.ObserveAttempt("success")
			metrics.ObserveFetch(rawURL, "succeeded", len(out.result.Content))
			result := out.result
			report.Result = &result
			return report
		case outcomePermanent:
			metrics.ObserveAttempt("permanent")
			metrics.ObserveFetch(rawURL, "failed", 0)
			report.Failure = out.failure
			if out.failure.Kind != KindCanceled {
				f.logger.Warn("permanent fetch failure", failureFields(out.failure)...)
			}
			return report
		}

		metrics.ObserveAttempt("retryable")
		if attempt == maxAttempts {
			metrics.ObserveFetch(rawURL, "failed", 0)
			report.Failure = out.failure
			f.logger.Error("retry budget exhausted", failureFields(out.failure)...)
			return report
		}

		delay := f.policy.Backoff(attempt)
		f.logger.Debug("retry scheduled",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("kind", string(out.failure.Kind)),
		)
		metrics.ObserveBackoff(delay)
		if err := f.clock.Sleep(ctx, delay); err != nil {
			report.Failure = &Failure{Kind: KindCanceled, URL: rawURL, Attempt: attempt, Err: err}
			return report
		}
	}
	return report
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string, attempt int) attemptOutcome {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			if ctx.Err() != nil {
				return permanent(&Failure{Kind: KindCanceled, URL: rawURL, Attempt: attempt, Err: ctx.Err()})
			}
			// rate.Limiter rejects waits that would outlast the ctx deadline.
			return permanent(&Failure{Kind: KindUnclassified, URL: rawURL, Attempt: attempt, Err: err})
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Get(attemptCtx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return permanent(&Failure{Kind: KindCanceled, URL: rawURL, Attempt: attempt, Err: ctx.Err()})
		}
		failure := &Failure{Kind: Classify(err), URL: rawURL, Attempt: attempt, Err: err}
		if f.policy.ShouldRetry(0, err) {
			failure.Kind = KindTransport
			return attemptOutcome{kind: outcomeRetryable, failure: failure}
		}
		return permanent(failure)
	}

	if !resp.Success() {
		failure := &Failure{Kind: KindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode, Attempt: attempt}
		kind := outcomePermanent
		if f.policy.ShouldRetry(resp.StatusCode, nil) {
			kind = outcomeRetryable
		}
		return attemptOutcome{kind: kind, failure: failure, status: resp.StatusCode}
	}

	result := Result{URL: rawURL}
	if resp.IsJSON() {
		content, err := decodeJSON(resp.Body)
		if err != nil {
			fields := []zap.Field{
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.String("kind", string(KindDecode)),
				zap.String("content_type", resp.ContentType()),
				zap.Error(err),
			}
			if f.maxBody > 0 && len(resp.Body) >= f.maxBody {
				fields = append(fields, zap.Bool("body_truncated", true), zap.Int("max_body_bytes", f.maxBody))
			}
			f.logger.Warn("json decode failed", fields...)
		} else {
			result.Content = content
		}
	}
	return attemptOutcome{kind: outcomeSuccess, result: result, status: resp.StatusCode}
}

// decodeJSON validates body as a single JSON value and returns it compacted.
func decodeJSON(body []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode body: trailing data after JSON value")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("compact body: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

func permanent(failure *Failure) attemptOutcome {
	return attemptOutcome{kind: outcomePermanent, failure: failure, status: failure.StatusCode}
}

func failureFields(failure *Failure) []zap.Field {
	fields := []zap.Field{
		zap.String("url", failure.URL),
		zap.Int("attempt", failure.Attempt),
		zap.String("kind", string(failure.Kind)),
	}
	if failure.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", failure.StatusCode))
	}
	if failure.Err != nil {
		fields = append(fields, zap.Error(failure.Err))
	}
	return fields
}
