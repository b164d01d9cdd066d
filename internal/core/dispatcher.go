package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"carboniq/internal/metrics"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// ReportProcessor is the part of the engine the dispatcher drives
type ReportProcessor interface {
	ProcessReport(ctx context.Context, ev models.ReportCreated) (*models.ProcessResult, error)
}

// Dispatcher decouples report intake from reward processing. Events are
// sharded by user id so one user's events are processed in arrival order;
// failures are retried with linear backoff and then dropped, leaving the
// ledger or a later sync to repair them.
type Dispatcher struct {
	processor   ReportProcessor
	shards      []chan models.ReportCreated
	maxAttempts int
	backoff     time.Duration

	mu      sync.RWMutex
	closed  bool
	depth   atomic.Int64
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// DispatcherConfig sizes the worker pool
type DispatcherConfig struct {
	Workers      int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// NewDispatcher creates a dispatcher; call Start to run its workers
func NewDispatcher(processor ReportProcessor, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	perShard := cfg.QueueSize / cfg.Workers
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]chan models.ReportCreated, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan models.ReportCreated, perShard)
	}

	return &Dispatcher{
		processor:   processor,
		shards:      shards,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
	}
}

// Start launches one worker per shard. Workers stop when ctx is cancelled
// or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(ctx)

	for i, ch := range d.shards {
		d.wg.Add(1)
		go d.worker(i, ch)
	}
	logger.Infof("Reward dispatcher started with %d workers", len(d.shards))
}

// Submit validates and enqueues an event without blocking. It returns
// ErrQueueFull when the user's shard is full.
func (d *Dispatcher) Submit(ev models.ReportCreated) error {
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("dispatcher stopped: %w", models.ErrQueueFull)
	}

	select {
	case d.shards[d.shardFor(ev.UserID)] <- ev:
		metrics.QueueDepth.Set(float64(d.depth.Add(1)))
		return nil
	default:
		return fmt.Errorf("shard for %s: %w", ev.UserID, models.ErrQueueFull)
	}
}

// Depth is the number of queued events
func (d *Dispatcher) Depth() int {
	return int(d.depth.Load())
}

// Stop refuses new events, drains the queues and waits for the workers
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
		d.cancel()
	}
	logger.Info("Reward dispatcher stopped")
}

func (d *Dispatcher) shardFor(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.shards)))
}

func (d *Dispatcher) worker(id int, ch <-chan models.ReportCreated) {
	defer d.wg.Done()

	for ev := range ch {
		metrics.QueueDepth.Set(float64(d.depth.Add(-1)))
		d.process(id, ev)
	}
}

func (d *Dispatcher) process(worker int, ev models.ReportCreated) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := d.attempt(worker, ev)
		if err == nil {
			return
		}

		fields := logger.WithFields(map[string]interface{}{
			"user_id":          ev.UserID,
			"source_report_id": ev.SourceReportID,
			"attempt":          attempt,
			"error":            err.Error(),
		})
		if errors.Is(err, models.ErrInvalidInput) || attempt == d.maxAttempts || utils.IsContextError(err) || d.ctx.Err() != nil {
			deadLetter(ev, err)
			return
		}
		fields.Warn("Reward processing failed, retrying")
		metrics.DispatchRetries.Inc()

		select {
		case <-time.After(time.Duration(attempt) * d.backoff):
		case <-d.ctx.Done():
			deadLetter(ev, d.ctx.Err())
			return
		}
	}
}

// attempt runs the processor once, turning a panic into an error so the
// shard keeps draining
func (d *Dispatcher) attempt(worker int, ev models.ReportCreated) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Reward worker %d panic recovered: %v", worker, r)
			err = fmt.Errorf("panic processing report %s: %v", ev.SourceReportID, r)
		}
	}()
	_, err = d.processor.ProcessReport(d.ctx, ev)
	return err
}

// deadLetter logs a dropped event with its full payload so it can be resubmitted
func deadLetter(ev models.ReportCreated, cause error) {
	payload, mErr := json.Marshal(ev)
	if mErr != nil {
		payload = []byte(fmt.Sprintf("%+v", ev))
	}
	metrics.DeadLetters.Inc()
	logger.WithFields(map[string]interface{}{
		"user_id":          ev.UserID,
		"source_report_id": ev.SourceReportID,
		"error":            cause.Error(),
		"event":            string(payload),
	}).Error("Dropping report after failed reward processing")
}
