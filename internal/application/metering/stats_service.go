package metering

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/apiplatform/backend/internal/domain/billing"
)

// StatsService aggregates usage events into dashboard analytics.
type StatsService struct {
	usageEventRepo billing.UsageEventRepository
}

// NewStatsService creates a new StatsService
func NewStatsService(usageEventRepo billing.UsageEventRepository) *StatsService {
	return &StatsService{usageEventRepo: usageEventRepo}
}

// OwnerStats aggregates one owner's events over the trailing window of days.
func (s *StatsService) OwnerStats(ctx context.Context, ownerID uuid.UUID, days int) (billing.UsageStats, error) {
	events, err := s.usageEventRepo.FindByOwnerSince(ctx, ownerID, sinceCutoff(days))
	if err != nil {
		return billing.UsageStats{}, err
	}
	return billing.NewUsageStats(events), nil
}

// GlobalStats aggregates every owner's events over the trailing window of days.
func (s *StatsService) GlobalStats(ctx context.Context, days int) (billing.UsageStats, error) {
	events, err := s.usageEventRepo.FindSince(ctx, sinceCutoff(days))
	if err != nil {
		return billing.UsageStats{}, err
	}
	return billing.NewUsageStats(events), nil
}

func sinceCutoff(days int) time.Time {
	if days <= 0 {
		days = 30
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}
