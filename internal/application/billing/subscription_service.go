package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/shared"
)

// SubscriptionView joins a subscription with its plan for dashboard reads.
type SubscriptionView struct {
	Subscription *billing.Subscription
	Plan         *billing.Plan
	Remaining    int64
}

// SubscriptionService assigns plans to owners and answers quota status reads.
type SubscriptionService struct {
	subscriptionRepo billing.SubscriptionRepository
	planRepo         billing.PlanRepository
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(subscriptionRepo billing.SubscriptionRepository, planRepo billing.PlanRepository) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
	}
}

// Subscribe assigns a plan to an owner. A first subscription is created with
// a fresh counter; changing plans also resets the counter and boundary.
func (s *SubscriptionService) Subscribe(ctx context.Context, ownerID, planID uuid.UUID) (*SubscriptionView, error) {
	_, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.subscriptionRepo.FindByOwner(ctx, ownerID)
	switch {
	case err == nil:
		if err := s.subscriptionRepo.AssignPlan(ctx, ownerID, planID, billing.NextMonthStart(now)); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		sub, err := billing.NewSubscription(ownerID, planID, now)
		if err != nil {
			return nil, err
		}
		if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.Status(ctx, ownerID)
}

// Status returns the owner's subscription joined with its plan. The view
// applies roll-over presentation: a subscription whose boundary has passed
// shows a zero counter even before the sweep or next request persists it.
func (s *SubscriptionService) Status(ctx context.Context, ownerID uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.subscriptionRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	sub.RollOver(time.Now().UTC())

	return &SubscriptionView{
		Subscription: sub,
		Plan:         plan,
		Remaining:    sub.Remaining(plan.MonthlyLimit),
	}, nil
}

// ListAll returns every subscription with its plan, for admin views.
func (s *SubscriptionService) ListAll(ctx context.Context) ([]*SubscriptionView, error) {
	subs, err := s.subscriptionRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*SubscriptionView, 0, len(subs))
	now := time.Now().UTC()
	for _, sub := range subs {
		plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		sub.RollOver(now)
		views = append(views, &SubscriptionView{
			Subscription: sub,
			Plan:         plan,
			Remaining:    sub.Remaining(plan.MonthlyLimit),
		})
	}
	return views, nil
}
