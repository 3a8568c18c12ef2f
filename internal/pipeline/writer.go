package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/fetchpipe/internal/fetch"
	"github.com/JakeFAU/fetchpipe/internal/metrics"
	"github.com/JakeFAU/fetchpipe/internal/queue/memory"
	"github.com/JakeFAU/fetchpipe/internal/sink"
)

// write drains results into out until the sentinel and then closes out.
// After a write error it keeps draining so workers never block on a full queue.
func (p *Pipeline) write(ctx context.Context, results *memory.Queue[fetch.Record], out *sink.JSONLWriter) (err error) {
	defer func() {
		p.logger.Debug("sink drained", zap.Int("lines", out.Lines()))
		err = errors.Join(err, out.Close())
	}()

	var writeErr error
	for {
		rec, ok, popErr := results.Pop(ctx)
		if popErr != nil {
			return errors.Join(writeErr, popErr)
		}
		if !ok {
			results.TaskDone()
			return writeErr
		}
		if writeErr == nil {
			if err := out.Write(rec); err != nil {
				writeErr = err
				p.logger.Error("sink write failed", zap.String("url", rec.RecordURL()), zap.Error(err))
			} else {
				p.counters.written.Add(1)
				metrics.ObserveRecordWritten(recordKind(rec))
			}
		}
		results.TaskDone()
	}
}

func recordKind(rec fetch.Record) string {
	switch rec.(type) {
	case fetch.Result:
		return "result"
	case fetch.StatusRecord:
		return "status"
	case fetch.FailureRecord:
		return "failure"
	default:
		return "unknown"
	}
}
