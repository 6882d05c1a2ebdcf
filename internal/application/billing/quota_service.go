// Package billing holds the application services for plans, subscriptions and
// the quota ledger.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/config"
)

// reserveRetries bounds the conditional-update loop. Every retry means another
// writer moved the row between our read and our update, so a couple of
// attempts is plenty.
const reserveRetries = 3

// ReserveResult is what a successful reservation hands back to admission:
// the post-increment snapshot plus the plan whose limits applied. Plan is nil
// for unsubscribed owners admitted by policy.
type ReserveResult struct {
	Reservation billing.Reservation
	Plan        *billing.Plan
}

// QuotaService owns every movement of the monthly usage counter. Reservations
// are conditional updates pushed down to the store, never read-modify-writes,
// so concurrent requests cannot admit past the limit.
type QuotaService struct {
	subscriptionRepo billing.SubscriptionRepository
	planRepo         billing.PlanRepository
	policy           config.QuotaConfig
	logger           *zap.Logger
	now              func() time.Time
}

// NewQuotaService creates a new QuotaService
func NewQuotaService(
	subscriptionRepo billing.SubscriptionRepository,
	planRepo billing.PlanRepository,
	policy config.QuotaConfig,
	logger *zap.Logger,
) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		policy:           policy,
		logger:           logger,
		now:              time.Now,
	}
}

// Reserve takes one unit of quota for the owner, rolling the period over first
// when its boundary has passed. The returned snapshot reflects the counter
// after this reservation.
//
// Denials come back as domain errors: ErrNoSubscription, ErrQuotaExceeded, or
// ErrStoreUnavailable when the store cannot answer and policy is fail-closed.
func (s *QuotaService) Reserve(ctx context.Context, ownerID uuid.UUID) (*ReserveResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()

	sub, err := s.subscriptionRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			if s.policy.AllowUnsubscribed {
				return &ReserveResult{Reservation: billing.Reservation{Unlimited: true}}, nil
			}
			return nil, shared.ErrNoSubscription
		}
		return s.storeFailure(err)
	}

	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Subscription points at a deleted plan. Treat as unsubscribed.
			if s.policy.AllowUnsubscribed {
				return &ReserveResult{Reservation: billing.Reservation{Unlimited: true}}, nil
			}
			return nil, shared.ErrNoSubscription
		}
		return s.storeFailure(err)
	}

	limit := plan.MonthlyLimit
	now := s.now().UTC()

	for attempt := 0; attempt < reserveRetries; attempt++ {
		ok, err := s.subscriptionRepo.TryReserve(ctx, ownerID, limit, now)
		if err != nil {
			return s.storeFailure(err)
		}
		if ok {
			return s.snapshot(ctx, ownerID, plan)
		}

		// The conditional update missed: exceeded, expired period, or we
		// raced another writer. Re-read to find out which.
		sub, err = s.subscriptionRepo.FindByOwner(ctx, ownerID)
		if err != nil {
			return s.storeFailure(err)
		}

		if sub.PeriodExpired(now) {
			if limit <= 0 {
				return nil, shared.ErrQuotaExceeded
			}
			ok, err := s.subscriptionRepo.RollOverAndReserve(ctx, ownerID, billing.NextMonthStart(now), now, 1)
			if err != nil {
				return s.storeFailure(err)
			}
			if ok {
				return s.snapshot(ctx, ownerID, plan)
			}
			// Another request rolled the period over first; retry against
			// the fresh period.
			continue
		}

		if sub.UsageCount >= limit {
			return nil, shared.ErrQuotaExceeded
		}
		// Room existed on the re-read but the update missed: lost a race.
	}

	s.logger.Warn("Quota reservation exhausted retries",
		zap.String("owner_id", ownerID.String()))
	return s.storeFailure(errors.New("reservation contention"))
}

// Entitlements returns the plan governing the owner, or nil when the owner
// has no subscription (or its plan was deleted). Store failures follow the
// fail-open policy: nil plan when open, ErrStoreUnavailable when closed.
func (s *QuotaService) Entitlements(ctx context.Context, ownerID uuid.UUID) (*billing.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()

	sub, err := s.subscriptionRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		if s.policy.FailOpen {
			return nil, nil
		}
		return nil, shared.ErrStoreUnavailable
	}

	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		if s.policy.FailOpen {
			return nil, nil
		}
		return nil, shared.ErrStoreUnavailable
	}
	return plan, nil
}

// Release undoes one reservation, used when policy refunds server errors.
func (s *QuotaService) Release(ctx context.Context, ownerID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()
	return s.subscriptionRepo.Release(ctx, ownerID)
}

// RefundsServerErrors reports whether admitted requests that end in 5xx get
// their reservation back.
func (s *QuotaService) RefundsServerErrors() bool {
	return s.policy.RefundServerErrors
}

func (s *QuotaService) snapshot(ctx context.Context, ownerID uuid.UUID, plan *billing.Plan) (*ReserveResult, error) {
	sub, err := s.subscriptionRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		// The reservation itself committed; headers just lose precision.
		return &ReserveResult{
			Reservation: billing.Reservation{Limit: plan.MonthlyLimit},
			Plan:        plan,
		}, nil
	}
	return &ReserveResult{
		Reservation: billing.Reservation{
			Used:    sub.UsageCount,
			Limit:   plan.MonthlyLimit,
			ResetAt: sub.ResetAt,
		},
		Plan: plan,
	}, nil
}

func (s *QuotaService) storeFailure(err error) (*ReserveResult, error) {
	if s.policy.FailOpen {
		s.logger.Warn("Quota store unavailable, admitting by fail-open policy", zap.Error(err))
		return &ReserveResult{Reservation: billing.Reservation{Unlimited: true}}, nil
	}
	s.logger.Error("Quota store unavailable, denying", zap.Error(err))
	return nil, shared.ErrStoreUnavailable
}
