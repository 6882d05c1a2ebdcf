package billing

import (
	"context"
	"time"

	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Subscription is the quota ledger for one owner: the assigned plan, the
// counter for the current period, and the boundary at which it resets.
// At most one subscription exists per owner (unique index on owner id).
//
// The counter and boundary are owned exclusively by the quota ledger; every
// mutation goes through the repository's atomic conditional operations, never
// through a read-modify-write.
type Subscription struct {
	shared.BaseEntity
	OwnerID    uuid.UUID
	PlanID     uuid.UUID
	UsageCount int64
	ResetAt    time.Time
}

// NewSubscription assigns a plan to an owner with a fresh counter.
func NewSubscription(ownerID, planID uuid.UUID, now time.Time) (*Subscription, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}

	return &Subscription{
		BaseEntity: shared.NewBaseEntity(),
		OwnerID:    ownerID,
		PlanID:     planID,
		UsageCount: 0,
		ResetAt:    NextMonthStart(now),
	}, nil
}

// NextMonthStart returns the first instant of the calendar month after now, in UTC.
func NextMonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// PeriodExpired reports whether the ledger's boundary has passed.
func (s *Subscription) PeriodExpired(now time.Time) bool {
	return !now.UTC().Before(s.ResetAt)
}

// RollOver resets the counter and advances the boundary if the period has
// expired. Calling it before the boundary is a no-op, and calling it twice
// with the same now yields the same post-state as calling it once.
func (s *Subscription) RollOver(now time.Time) {
	if !s.PeriodExpired(now) {
		return
	}
	s.UsageCount = 0
	s.ResetAt = NextMonthStart(now)
	s.UpdatedAt = now.UTC()
}

// Remaining returns how many requests are left under the given limit.
func (s *Subscription) Remaining(limit int64) int64 {
	remaining := limit - s.UsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reservation is the post-increment snapshot returned by a successful quota
// reservation, kept for response headers and logging.
type Reservation struct {
	Used      int64
	Limit     int64
	ResetAt   time.Time
	Unlimited bool
}

// SubscriptionRepository is the persistence port for subscriptions.
//
// TryReserve and RollOverAndReserve are the only ways the usage counter moves
// forward, and both must be single atomic conditional updates against the
// store: the test-and-increment may not be split into a read followed by a
// write, or concurrent requests would overshoot the limit.
type SubscriptionRepository interface {
	Save(ctx context.Context, sub *Subscription) error
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error)
	FindAll(ctx context.Context) ([]*Subscription, error)
	FindExpired(ctx context.Context, now time.Time) ([]*Subscription, error)

	// AssignPlan re-points an existing subscription at a plan, resetting the
	// counter and boundary in the same update.
	AssignPlan(ctx context.Context, ownerID, planID uuid.UUID, resetAt time.Time) error

	// TryReserve increments usage_count by one iff it is currently below limit
	// and the period is still open (reset_at > now). Returns false when the
	// condition did not hold; the caller re-reads to find out why.
	TryReserve(ctx context.Context, ownerID uuid.UUID, limit int64, now time.Time) (bool, error)

	// RollOverAndReserve handles an expired period: iff reset_at <= now, it
	// sets usage_count to firstUsage (1 to also take the reservation, 0 to
	// only roll over) and advances reset_at, all in one conditional update.
	RollOverAndReserve(ctx context.Context, ownerID uuid.UUID, newResetAt time.Time, now time.Time, firstUsage int64) (bool, error)

	// Release undoes one reservation (compensating action); it never drives
	// the counter below zero.
	Release(ctx context.Context, ownerID uuid.UUID) error
}
