package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/fetchpipe/internal/config"
	"github.com/JakeFAU/fetchpipe/internal/fetch"
	"github.com/JakeFAU/fetchpipe/internal/metrics"
	"github.com/JakeFAU/fetchpipe/internal/queue/memory"
)

// work consumes URLs until it dequeues its sentinel. Every dequeued item,
// sentinel included, is acknowledged with TaskDone.
func (p *Pipeline) work(ctx context.Context, id int, runID string, urls *memory.Queue[string], results *memory.Queue[fetch.Record]) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		rawURL, ok, err := urls.Pop(ctx)
		if err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}
		if !ok {
			urls.TaskDone()
			return nil
		}
		rec := p.process(ctx, runID, rawURL)
		if rec != nil {
			if err := results.Push(ctx, rec); err != nil {
				urls.TaskDone()
				return fmt.Errorf("worker %d: %w", id, err)
			}
		}
		urls.TaskDone()
	}
}

// process fetches one URL and maps the report onto the record to emit, if any.
func (p *Pipeline) process(ctx context.Context, runID, rawURL string) fetch.Record {
	report := p.fetcher.Fetch(ctx, rawURL)
	if !report.OK() && report.Failure != nil && report.Failure.Kind == fetch.KindCanceled {
		return nil
	}

	if report.OK() {
		p.counters.succeeded.Add(1)
	} else {
		p.counters.failed.Add(1)
		p.recordFailure(ctx, runID, report)
	}

	if p.cfg.Mode == config.ModeStatus {
		return fetch.StatusRecord{URL: rawURL, StatusCode: report.StatusCode}
	}
	if report.OK() {
		return *report.Result
	}
	if p.cfg.EmitFailures && report.Failure != nil {
		return failureRecord(report)
	}
	return nil
}

func (p *Pipeline) recordFailure(ctx context.Context, runID string, report fetch.Report) {
	if p.failures == nil || report.Failure == nil {
		return
	}
	if err := p.failures.RecordFailure(ctx, runID, *report.Failure); err != nil {
		p.logger.Warn("record failure failed",
			zap.String("run_id", runID),
			zap.String("url", report.URL),
			zap.Error(err),
		)
	}
}

func failureRecord(report fetch.Report) fetch.FailureRecord {
	f := report.Failure
	return fetch.FailureRecord{
		URL: report.URL,
		Error: fetch.FailureEntry{
			Kind:       f.Kind,
			StatusCode: f.StatusCode,
			Attempts:   report.Attempts,
			Message:    f.Error(),
		},
	}
}
