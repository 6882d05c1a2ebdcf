package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/apiplatform/backend/internal/application/billing"
	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/identity"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/config"
)

// In-memory ports backing the admission pipeline under test.

type fakeKeyRepo struct {
	byDigest map[string]*credential.APIKey
}

func (r *fakeKeyRepo) Save(_ context.Context, key *credential.APIKey) error {
	r.byDigest[key.KeyDigest] = key
	return nil
}

func (r *fakeKeyRepo) FindByDigest(_ context.Context, digest string) (*credential.APIKey, error) {
	key, ok := r.byDigest[digest]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return key, nil
}

func (r *fakeKeyRepo) FindByID(context.Context, uuid.UUID) (*credential.APIKey, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeKeyRepo) FindByOwner(context.Context, uuid.UUID) ([]*credential.APIKey, error) {
	return nil, nil
}

func (r *fakeKeyRepo) FindAll(context.Context) ([]*credential.APIKey, error) { return nil, nil }

func (r *fakeKeyRepo) Revoke(context.Context, uuid.UUID, uuid.UUID, bool) error { return nil }

func (r *fakeKeyRepo) RevokeAllForOwner(context.Context, uuid.UUID) error { return nil }

func (r *fakeKeyRepo) Rotate(context.Context, uuid.UUID, uuid.UUID, *credential.APIKey) error {
	return nil
}

type fakeUserRepo struct {
	byID map[uuid.UUID]*identity.User
}

func (r *fakeUserRepo) Save(_ context.Context, user *identity.User) error {
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *identity.User) error {
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindByEmail(context.Context, string) (*identity.User, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeUserRepo) FindAll(context.Context) ([]*identity.User, error) { return nil, nil }

type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*billing.Subscription
}

func (r *fakeSubRepo) Save(_ context.Context, sub *billing.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *sub
	r.subs[sub.OwnerID] = &copied
	return nil
}

func (r *fakeSubRepo) FindByOwner(_ context.Context, ownerID uuid.UUID) (*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[ownerID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubRepo) FindAll(context.Context) ([]*billing.Subscription, error) { return nil, nil }

func (r *fakeSubRepo) FindExpired(context.Context, time.Time) ([]*billing.Subscription, error) {
	return nil, nil
}

func (r *fakeSubRepo) AssignPlan(context.Context, uuid.UUID, uuid.UUID, time.Time) error {
	return nil
}

func (r *fakeSubRepo) TryReserve(_ context.Context, ownerID uuid.UUID, limit int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[ownerID]
	if !ok || sub.UsageCount >= limit || !sub.ResetAt.After(now) {
		return false, nil
	}
	sub.UsageCount++
	return true, nil
}

func (r *fakeSubRepo) RollOverAndReserve(_ context.Context, ownerID uuid.UUID, newResetAt, now time.Time, firstUsage int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[ownerID]
	if !ok || sub.ResetAt.After(now) {
		return false, nil
	}
	sub.UsageCount = firstUsage
	sub.ResetAt = newResetAt
	return true, nil
}

func (r *fakeSubRepo) Release(_ context.Context, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[ownerID]; ok && sub.UsageCount > 0 {
		sub.UsageCount--
	}
	return nil
}

type fakePlanRepo struct {
	byID map[uuid.UUID]*billing.Plan
}

func (r *fakePlanRepo) Save(_ context.Context, plan *billing.Plan) error {
	r.byID[plan.ID] = plan
	return nil
}

func (r *fakePlanRepo) Update(_ context.Context, plan *billing.Plan) error {
	r.byID[plan.ID] = plan
	return nil
}

func (r *fakePlanRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Plan, error) {
	plan, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return plan, nil
}

func (r *fakePlanRepo) FindAll(context.Context) ([]*billing.Plan, error) { return nil, nil }

func (r *fakePlanRepo) Delete(context.Context, uuid.UUID) error { return nil }

// countingLimiter admits the first n requests per key.
type countingLimiter struct {
	counts map[string]int64
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int64) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

type fixture struct {
	service  *Service
	keyRepo  *fakeKeyRepo
	userRepo *fakeUserRepo
	subRepo  *fakeSubRepo
	planRepo *fakePlanRepo
	limiter  *countingLimiter

	owner   *identity.User
	fullKey string
	key     *credential.APIKey
}

func newFixture(t *testing.T, policy config.QuotaConfig) *fixture {
	t.Helper()
	policy.StoreTimeout = 3 * time.Second

	keyRepo := &fakeKeyRepo{byDigest: make(map[string]*credential.APIKey)}
	userRepo := &fakeUserRepo{byID: make(map[uuid.UUID]*identity.User)}
	subRepo := &fakeSubRepo{subs: make(map[uuid.UUID]*billing.Subscription)}
	planRepo := &fakePlanRepo{byID: make(map[uuid.UUID]*billing.Plan)}
	limiter := &countingLimiter{counts: make(map[string]int64)}

	owner, err := identity.NewUser("owner@example.com", "$2a$10$hash", identity.RoleClient)
	require.NoError(t, err)
	require.NoError(t, userRepo.Save(context.Background(), owner))

	issued, err := credential.Issue()
	require.NoError(t, err)
	key, err := credential.NewAPIKey(owner.ID, "test", issued, nil, nil)
	require.NoError(t, err)
	require.NoError(t, keyRepo.Save(context.Background(), key))

	quota := appbilling.NewQuotaService(subRepo, planRepo, policy, nil)
	service := NewService(keyRepo, userRepo, quota, limiter, nil, nil)

	return &fixture{
		service:  service,
		keyRepo:  keyRepo,
		userRepo: userRepo,
		subRepo:  subRepo,
		planRepo: planRepo,
		limiter:  limiter,
		owner:    owner,
		fullKey:  issued.FullKey,
		key:      key,
	}
}

// subscribe gives the fixture owner a plan with the given limits.
func (f *fixture) subscribe(t *testing.T, monthlyLimit, ratePerMinute int64, services []string) *billing.Plan {
	t.Helper()
	plan, err := billing.NewPlan("plan", monthlyLimit, ratePerMinute, services)
	require.NoError(t, err)
	require.NoError(t, f.planRepo.Save(context.Background(), plan))

	sub, err := billing.NewSubscription(f.owner.ID, plan.ID, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.subRepo.Save(context.Background(), sub))
	return plan
}

func assertDenied(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestService_Admit(t *testing.T) {
	ctx := context.Background()

	t.Run("admits subscribed key and reserves one unit", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.subscribe(t, 100, 0, nil)

		ticket, err := f.service.Admit(ctx, f.fullKey, "weather")
		require.NoError(t, err)
		assert.Equal(t, f.key.ID, ticket.Key.ID)
		assert.Equal(t, int64(1), ticket.Reservation.Used)
		assert.Equal(t, int64(100), ticket.Reservation.Limit)
	})

	t.Run("missing key header is invalid", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		_, err := f.service.Admit(ctx, "", "weather")
		assertDenied(t, err, "INVALID_API_KEY")
	})

	t.Run("unknown key and malformed key are indistinguishable", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})

		_, errUnknown := f.service.Admit(ctx, "aabbccdd.0000000000000000000000000000000000000000000000ff", "weather")
		_, errMalformed := f.service.Admit(ctx, "not-even-a-key", "weather")

		assertDenied(t, errUnknown, "INVALID_API_KEY")
		assertDenied(t, errMalformed, "INVALID_API_KEY")
	})

	t.Run("revoked key is inactive", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.key.Revoke()

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "API_KEY_INACTIVE")
	})

	t.Run("expired key is inactive", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		expired := time.Now().UTC().Add(-time.Hour)
		f.key.ExpiresAt = &expired

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "API_KEY_INACTIVE")
	})

	t.Run("suspended owner is denied", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.owner.Suspend()

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "USER_SUSPENDED")
	})

	t.Run("key scoped to other services is denied", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.key.AllowedServices = []string{"currency"}

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "SERVICE_NOT_ALLOWED")
	})

	t.Run("plan scoped to other services is denied without burning quota", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.subscribe(t, 100, 0, []string{"currency"})

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "SERVICE_NOT_ALLOWED")
		assert.Equal(t, int64(0), f.subRepo.subs[f.owner.ID].UsageCount)
	})

	t.Run("quota exhaustion denies", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.subscribe(t, 2, 0, nil)

		for i := 0; i < 2; i++ {
			_, err := f.service.Admit(ctx, f.fullKey, "weather")
			require.NoError(t, err)
		}

		ticket, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "QUOTA_EXCEEDED")

		// The denial still carries the key so the attempt can be attributed.
		require.NotNil(t, ticket)
		assert.Equal(t, f.key.ID, ticket.Key.ID)
	})

	t.Run("denials before resolution have no attribution", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})

		ticket, err := f.service.Admit(ctx, "garbage", "weather")
		assertDenied(t, err, "INVALID_API_KEY")
		assert.Nil(t, ticket)
	})

	t.Run("per-minute window denies before touching quota", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{})
		f.subscribe(t, 100, 2, nil)

		for i := 0; i < 2; i++ {
			_, err := f.service.Admit(ctx, f.fullKey, "weather")
			require.NoError(t, err)
		}

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "RATE_LIMIT_EXCEEDED")
		assert.Equal(t, int64(2), f.subRepo.subs[f.owner.ID].UsageCount)
	})

	t.Run("unsubscribed owner is unlimited under default policy", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{AllowUnsubscribed: true})

		ticket, err := f.service.Admit(ctx, f.fullKey, "weather")
		require.NoError(t, err)
		assert.True(t, ticket.Reservation.Unlimited)
		assert.Nil(t, ticket.Plan)
	})

	t.Run("unsubscribed owner is denied when policy requires a plan", func(t *testing.T) {
		f := newFixture(t, config.QuotaConfig{AllowUnsubscribed: false})

		_, err := f.service.Admit(ctx, f.fullKey, "weather")
		assertDenied(t, err, "NO_SUBSCRIPTION")
	})
}

func TestService_Refund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.QuotaConfig{})
	f.subscribe(t, 100, 0, nil)

	ticket, err := f.service.Admit(ctx, f.fullKey, "weather")
	require.NoError(t, err)
	require.Equal(t, int64(1), f.subRepo.subs[f.owner.ID].UsageCount)

	f.service.Refund(ctx, ticket)
	assert.Equal(t, int64(0), f.subRepo.subs[f.owner.ID].UsageCount)

	t.Run("unlimited tickets have nothing to refund", func(t *testing.T) {
		f.service.Refund(ctx, &Ticket{Reservation: billing.Reservation{Unlimited: true}})
		assert.Equal(t, int64(0), f.subRepo.subs[f.owner.ID].UsageCount)
	})
}
