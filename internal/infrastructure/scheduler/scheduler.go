// Package scheduler runs the background sweeps: monthly period roll-over and
// usage event retention.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/infrastructure/config"
	"github.com/apiplatform/backend/internal/infrastructure/telemetry"
)

// Scheduler owns the cron entries for the maintenance sweeps.
type Scheduler struct {
	cron             *cron.Cron
	cfg              config.SchedulerConfig
	subscriptionRepo billing.SubscriptionRepository
	usageEventRepo   billing.UsageEventRepository
	metrics          *telemetry.Metrics
	logger           *zap.Logger
}

// New creates a scheduler with both sweeps registered. Metrics may be nil.
func New(
	cfg config.SchedulerConfig,
	subscriptionRepo billing.SubscriptionRepository,
	usageEventRepo billing.UsageEventRepository,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:             cron.New(),
		cfg:              cfg,
		subscriptionRepo: subscriptionRepo,
		usageEventRepo:   usageEventRepo,
		metrics:          metrics,
		logger:           logger,
	}

	if _, err := s.cron.AddFunc(cfg.RollOverSchedule, s.rollOverSweep); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.RetentionSchedule, s.retentionSweep); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running the cron entries.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("rollover_schedule", s.cfg.RollOverSchedule),
		zap.String("retention_schedule", s.cfg.RetentionSchedule),
		zap.Int("retention_days", s.cfg.RetentionDays),
	)
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// rollOverSweep advances every expired subscription into its next period.
// Requests roll periods over lazily on their own; the sweep exists so idle
// subscriptions also show a fresh counter in the dashboard. The conditional
// update makes the sweep and a concurrent request collapse into one roll-over.
func (s *Scheduler) rollOverSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now().UTC()
	expired, err := s.subscriptionRepo.FindExpired(ctx, now)
	if err != nil {
		s.logger.Error("Roll-over sweep failed to list expired subscriptions", zap.Error(err))
		return
	}

	rolled := 0
	for _, sub := range expired {
		ok, err := s.subscriptionRepo.RollOverAndReserve(ctx, sub.OwnerID, billing.NextMonthStart(now), now, 0)
		if err != nil {
			s.logger.Error("Roll-over sweep failed",
				zap.String("owner_id", sub.OwnerID.String()),
				zap.Error(err))
			continue
		}
		if ok {
			rolled++
			if s.metrics != nil {
				s.metrics.RollOversTotal.Inc()
			}
		}
	}

	if len(expired) > 0 {
		s.logger.Info("Roll-over sweep finished",
			zap.Int("expired", len(expired)),
			zap.Int("rolled", rolled))
	}
}

// retentionSweep prunes usage events older than the retention window.
func (s *Scheduler) retentionSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.usageEventRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Retention sweep failed", zap.Error(err))
		return
	}

	if s.metrics != nil {
		s.metrics.EventsPrunedTotal.Add(float64(deleted))
	}
	if deleted > 0 {
		s.logger.Info("Retention sweep finished",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
}
