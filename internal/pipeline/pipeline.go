package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/fetchpipe/internal/clock/system"
	"github.com/JakeFAU/fetchpipe/internal/config"
	"github.com/JakeFAU/fetchpipe/internal/fetch"
	"github.com/JakeFAU/fetchpipe/internal/queue/memory"
	"github.com/JakeFAU/fetchpipe/internal/sink"
	"github.com/JakeFAU/fetchpipe/internal/storage"
)

// DefaultWorkerCount is the pool size used when Config.WorkerCount is unset.
const DefaultWorkerCount = 10

// URLFetcher performs one logical fetch, retries included.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) fetch.Report
}

// Config controls pool size, queue bounds and what gets written.
type Config struct {
	WorkerCount     int
	URLQueueSize    int
	ResultQueueSize int
	// Mode is config.ModeContent (default) or config.ModeStatus.
	Mode         string
	EmitFailures bool
	// NotifyTopic receives the run Summary when a Publisher is configured.
	NotifyTopic string
}

// Deps are the collaborators a Pipeline needs. Storage and Fetcher are
// required; the rest are optional.
type Deps struct {
	Storage   storage.Provider
	Fetcher   URLFetcher
	Client    io.Closer
	Failures  fetch.FailureRecorder
	Publisher fetch.Publisher
	IDs       fetch.IDGenerator
	Clock     fetch.Clock
}

// Summary describes a finished run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	URLs       int64     `json:"urls"`
	Succeeded  int64     `json:"succeeded"`
	Failed     int64     `json:"failed"`
	Written    int64     `json:"written"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Progress is a point-in-time view of the current or last run.
type Progress struct {
	RunID     string    `json:"run_id"`
	Running   bool      `json:"running"`
	URLs      int64     `json:"urls"`
	Succeeded int64     `json:"succeeded"`
	Failed    int64     `json:"failed"`
	Written   int64     `json:"written"`
	StartedAt time.Time `json:"started_at"`
}

type counters struct {
	urls      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	written   atomic.Int64
}

func (c *counters) reset() {
	c.urls.Store(0)
	c.succeeded.Store(0)
	c.failed.Store(0)
	c.written.Store(0)
}

// Pipeline wires Producer, workers and Writer for one run at a time.
type Pipeline struct {
	cfg       Config
	storage   storage.Provider
	fetcher   URLFetcher
	client    io.Closer
	failures  fetch.FailureRecorder
	publisher fetch.Publisher
	ids       fetch.IDGenerator
	clock     fetch.Clock
	logger    *zap.Logger

	counters counters

	mu        sync.Mutex
	running   bool
	runID     string
	startedAt time.Time
}

// New validates cfg and deps and constructs a Pipeline.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if deps.Storage == nil {
		return nil, errors.New("storage provider is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.URLQueueSize < 0 || cfg.ResultQueueSize < 0 {
		return nil, errors.New("queue sizes must be >= 0")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = config.ModeContent
	case config.ModeContent, config.ModeStatus:
	default:
		return nil, fmt.Errorf("unknown output mode %q", cfg.Mode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = system.New()
	}
	return &Pipeline{
		cfg:       cfg,
		storage:   deps.Storage,
		fetcher:   deps.Fetcher,
		client:    deps.Client,
		failures:  deps.Failures,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Run reads URLs from source, fetches them with the worker pool and writes
// records to sink. Only a source or sink that cannot be opened, a failed sink
// write, or cancellation of ctx produce an error; individual fetch failures
// never do. Once the run has started, the HTTP client is released before Run
// returns; a Run rejected because another is in flight leaves it untouched.
func (p *Pipeline) Run(ctx context.Context, source, sinkPath string) (summary Summary, err error) {
	runID, startedAt, err := p.begin()
	if err != nil {
		return Summary{}, err
	}
	defer p.end()
	if p.client != nil {
		defer func() {
			if closeErr := p.client.Close(); closeErr != nil {
				p.logger.Warn("close http client failed", zap.Error(closeErr))
			}
		}()
	}

	summary = Summary{RunID: runID, Mode: p.cfg.Mode, StartedAt: startedAt}
	logger := p.logger.With(zap.String("run_id", runID))

	src, err := p.storage.OpenReader(ctx, source)
	if err != nil {
		return summary, fmt.Errorf("open source: %w", err)
	}
	dst, err := p.storage.OpenWriter(ctx, sinkPath)
	if err != nil {
		_ = src.Close()
		return summary, fmt.Errorf("open sink: %w", err)
	}
	logger.Info("pipeline started",
		zap.String("source", source),
		zap.String("sink", sinkPath),
		zap.Int("workers", p.cfg.WorkerCount),
		zap.String("mode", p.cfg.Mode),
	)

	urls := memory.NewQueue[string](p.cfg.URLQueueSize)
	results := memory.NewQueue[fetch.Record](p.cfg.ResultQueueSize)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- p.write(ctx, results, sink.NewJSONLWriter(dst))
	}()

	producerDone := make(chan error, 1)
	go func() {
		defer func() { _ = src.Close() }()
		producerDone <- produce(ctx, src, urls, p.cfg.WorkerCount, func() { p.counters.urls.Add(1) })
	}()

	var workers errgroup.Group
	for i := range p.cfg.WorkerCount {
		id := i + 1
		workers.Go(func() error {
			return p.work(ctx, id, runID, urls, results)
		})
	}

	producerErr := <-producerDone
	workersErr := workers.Wait()
	if workersErr == nil {
		workersErr = urls.Join(ctx)
	}
	endErr := results.PushEnd(ctx)
	writerErr := <-writerDone
	if writerErr == nil {
		writerErr = results.Join(ctx)
	}

	summary.URLs = p.counters.urls.Load()
	summary.Succeeded = p.counters.succeeded.Load()
	summary.Failed = p.counters.failed.Load()
	summary.Written = p.counters.written.Load()
	summary.FinishedAt = p.clock.Now()

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("pipeline canceled", summaryFields(summary)...)
		return summary, fmt.Errorf("pipeline canceled: %w", ctxErr)
	}
	if err := errors.Join(producerErr, workersErr, endErr, writerErr); err != nil {
		logger.Error("pipeline failed", append(summaryFields(summary), zap.Error(err))...)
		return summary, err
	}

	logger.Info("pipeline finished", summaryFields(summary)...)
	p.notify(ctx, logger, summary)
	return summary, nil
}

// Progress reports the current or most recent run.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Progress{
		RunID:     p.runID,
		Running:   p.running,
		URLs:      p.counters.urls.Load(),
		Succeeded: p.counters.succeeded.Load(),
		Failed:    p.counters.failed.Load(),
		Written:   p.counters.written.Load(),
		StartedAt: p.startedAt,
	}
}

func (p *Pipeline) begin() (string, time.Time, error) {
	runID := ""
	if p.ids != nil {
		id, err := p.ids.NewID()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("generate run id: %w", err)
		}
		runID = id
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return "", time.Time{}, errors.New("pipeline is already running")
	}
	p.running = true
	p.runID = runID
	p.startedAt = p.clock.Now()
	p.counters.reset()
	return runID, p.startedAt, nil
}

func (p *Pipeline) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

func (p *Pipeline) notify(ctx context.Context, logger *zap.Logger, summary Summary) {
	if p.publisher == nil || p.cfg.NotifyTopic == "" {
		return
	}
	id, err := p.publisher.Publish(ctx, p.cfg.NotifyTopic, summary)
	if err != nil {
		logger.Warn("publish run summary failed", zap.String("topic", p.cfg.NotifyTopic), zap.Error(err))
		return
	}
	logger.Debug("run summary published", zap.String("topic", p.cfg.NotifyTopic), zap.String("message_id", id))
}

func summaryFields(s Summary) []zap.Field {
	return []zap.Field{
		zap.Int64("urls", s.URLs),
		zap.Int64("succeeded", s.Succeeded),
		zap.Int64("failed", s.Failed),
		zap.Int64("written", s.Written),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	}
}
