// Package metering records usage events off the request path and serves usage
// analytics derived from them.
package metering

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/infrastructure/telemetry"
)

// RecorderConfig holds configuration for the async usage recorder.
type RecorderConfig struct {
	// BufferSize is the size of the async write buffer.
	BufferSize int
	// BatchSize is the number of events to batch before writing.
	BatchSize int
	// FlushInterval is the maximum time to wait before flushing the buffer.
	FlushInterval time.Duration
}

// DefaultRecorderConfig returns default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:    10000,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// Recorder collects usage events on a buffered channel and writes them to the
// store in batches from a background goroutine. Recording never blocks the
// request path: when the buffer is full the event is dropped and counted.
// Dropped or duplicated events skew analytics only; the quota counter on the
// subscription is the billing authority.
type Recorder struct {
	config     RecorderConfig
	repository billing.UsageEventRepository
	buffer     chan *billing.UsageEvent
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	wg         sync.WaitGroup
	stopCh     chan struct{}
	mu         sync.RWMutex
	running    bool
}

// NewRecorder creates a recorder. Metrics may be nil.
func NewRecorder(cfg RecorderConfig, repo billing.UsageEventRepository, logger *zap.Logger, metrics *telemetry.Metrics) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		config:     cfg,
		repository: repo,
		buffer:     make(chan *billing.UsageEvent, cfg.BufferSize),
		logger:     logger,
		metrics:    metrics,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background batch writer goroutine.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	r.running = true
	r.wg.Add(1)
	go r.batchWriter()

	r.logger.Info("Usage recorder started",
		zap.Int("buffer_size", r.config.BufferSize),
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("flush_interval", r.config.FlushInterval),
	)
}

// Stop gracefully stops the recorder, flushing buffered events.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Usage recorder stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Usage recorder stop timed out")
		return ctx.Err()
	}
}

// Record queues an event for async writing. Returns false when the event was
// dropped because the recorder is stopped or the buffer is full.
func (r *Recorder) Record(event *billing.UsageEvent) bool {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()

	if !running {
		return false
	}

	select {
	case r.buffer <- event:
		return true
	default:
		if r.metrics != nil {
			r.metrics.UsageDropped.Inc()
		}
		r.logger.Warn("Usage buffer full, dropping event",
			zap.String("owner_id", event.OwnerID.String()),
			zap.String("endpoint", event.Endpoint),
		)
		return false
	}
}

func (r *Recorder) batchWriter() {
	defer r.wg.Done()

	batch := make([]*billing.UsageEvent, 0, r.config.BatchSize)
	ticker := time.NewTicker(r.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := r.repository.SaveBatch(ctx, batch)
		cancel()

		if err != nil {
			r.logger.Error("Failed to write usage batch",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		} else {
			if r.metrics != nil {
				r.metrics.UsageRecorded.Add(float64(len(batch)))
			}
			r.logger.Debug("Wrote usage batch", zap.Int("batch_size", len(batch)))
		}

		batch = batch[:0]
	}

	for {
		select {
		case event := <-r.buffer:
			batch = append(batch, event)
			if len(batch) >= r.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-r.stopCh:
			// Drain whatever is already buffered, then exit.
			for {
				select {
				case event := <-r.buffer:
					batch = append(batch, event)
					if len(batch) >= r.config.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
