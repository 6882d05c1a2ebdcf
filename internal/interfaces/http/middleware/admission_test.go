package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/apiplatform/backend/internal/application/admission"
	appbilling "github.com/apiplatform/backend/internal/application/billing"
	"github.com/apiplatform/backend/internal/application/metering"
	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/identity"
	"github.com/apiplatform/backend/internal/infrastructure/config"
	"github.com/apiplatform/backend/internal/infrastructure/persistence"
	"github.com/apiplatform/backend/internal/infrastructure/persistence/models"
	"github.com/apiplatform/backend/internal/infrastructure/ratelimit"
	"github.com/apiplatform/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// gatewayEnv is a full admission stack over an in-memory database.
type gatewayEnv struct {
	engine         *gin.Engine
	recorder       *metering.Recorder
	userRepo       identity.Repository
	keyRepo        credential.Repository
	planRepo       billing.PlanRepository
	subRepo        billing.SubscriptionRepository
	usageEventRepo billing.UsageEventRepository
}

func setupGateway(t *testing.T, policy config.QuotaConfig) *gatewayEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.UserModel{},
		&models.APIKeyModel{},
		&models.PlanModel{},
		&models.SubscriptionModel{},
		&models.UsageEventModel{},
	))

	env := &gatewayEnv{
		userRepo:       persistence.NewGormUserRepository(db),
		keyRepo:        persistence.NewGormAPIKeyRepository(db),
		planRepo:       persistence.NewGormPlanRepository(db),
		subRepo:        persistence.NewGormSubscriptionRepository(db),
		usageEventRepo: persistence.NewGormUsageEventRepository(db),
	}

	if policy.StoreTimeout == 0 {
		policy.StoreTimeout = time.Second
	}
	quota := appbilling.NewQuotaService(env.subRepo, env.planRepo, policy, zap.NewNop())
	svc := admission.NewService(env.keyRepo, env.userRepo, quota, ratelimit.NewMemoryLimiter(), nil, zap.NewNop())

	env.recorder = metering.NewRecorder(metering.RecorderConfig{
		BufferSize:    100,
		BatchSize:     10,
		FlushInterval: 10 * time.Millisecond,
	}, env.usageEventRepo, zap.NewNop(), nil)
	env.recorder.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		env.recorder.Stop(ctx) //nolint:errcheck
	})

	env.engine = gin.New()
	env.engine.Use(middleware.RequestID(), middleware.Admission(svc, env.recorder, zap.NewNop()))
	env.engine.GET("/api/v1/services/weather", func(c *gin.Context) {
		ticket := middleware.GetTicket(c)
		require.NotNil(t, ticket)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	env.engine.GET("/api/v1/services/broken", func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false})
	})

	return env
}

// newClient provisions an active user with one key, optionally subscribed.
func (env *gatewayEnv) newClient(t *testing.T, plan *billing.Plan, keyServices []string) string {
	t.Helper()
	ctx := context.Background()

	user, err := identity.NewUser(fmt.Sprintf("%s@example.com", uuid.NewString()), "hash", identity.RoleClient)
	require.NoError(t, err)
	require.NoError(t, env.userRepo.Save(ctx, user))

	if plan != nil {
		require.NoError(t, env.planRepo.Save(ctx, plan))
		sub, err := billing.NewSubscription(user.ID, plan.ID, time.Now())
		require.NoError(t, err)
		require.NoError(t, env.subRepo.Save(ctx, sub))
	}

	issued, err := credential.Issue()
	require.NoError(t, err)
	key, err := credential.NewAPIKey(user.ID, "test key", issued, keyServices, nil)
	require.NoError(t, err)
	require.NoError(t, env.keyRepo.Save(ctx, key))

	return issued.FullKey
}

func (env *gatewayEnv) request(path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, apiKey)
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func mustPlan(t *testing.T, limit, ratePerMinute int64, services []string) *billing.Plan {
	t.Helper()
	plan, err := billing.NewPlan(fmt.Sprintf("plan-%s", uuid.NewString()), limit, ratePerMinute, services)
	require.NoError(t, err)
	return plan
}

func TestAdmission_AdmitsAndSetsQuotaHeaders(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
	fullKey := env.newClient(t, mustPlan(t, 10, 0, nil), nil)

	w := env.request("/api/v1/services/weather", fullKey)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-Quota-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-Quota-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-Quota-Reset"))
}

func TestAdmission_DeniesMissingAndUnknownKeysAlike(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})

	missing := env.request("/api/v1/services/weather", "")
	unknown := env.request("/api/v1/services/weather", "abcd1234.0000000000000000000000000000000000000000000000ff")

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Contains(t, unknown.Body.String(), "INVALID_API_KEY")
	assert.Contains(t, missing.Body.String(), "INVALID_API_KEY")
}

func TestAdmission_ExhaustedQuotaReturns429(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
	fullKey := env.newClient(t, mustPlan(t, 2, 0, nil), nil)

	assert.Equal(t, http.StatusOK, env.request("/api/v1/services/weather", fullKey).Code)
	assert.Equal(t, http.StatusOK, env.request("/api/v1/services/weather", fullKey).Code)

	w := env.request("/api/v1/services/weather", fullKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "QUOTA_EXCEEDED")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestAdmission_KeyScopeDenies403WithoutBurningQuota(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
	fullKey := env.newClient(t, mustPlan(t, 5, 0, nil), []string{"currency"})

	w := env.request("/api/v1/services/weather", fullKey)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SERVICE_NOT_ALLOWED")

	// the denied attempt must not have consumed a unit
	subs, err := env.subRepo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(0), subs[0].UsageCount)
}

func TestAdmission_UnsubscribedPolicy(t *testing.T) {
	t.Run("allowed when policy permits", func(t *testing.T) {
		env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
		fullKey := env.newClient(t, nil, nil)

		w := env.request("/api/v1/services/weather", fullKey)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "unlimited", w.Header().Get("X-Quota-Limit"))
	})

	t.Run("denied when policy forbids", func(t *testing.T) {
		env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: false})
		fullKey := env.newClient(t, nil, nil)

		w := env.request("/api/v1/services/weather", fullKey)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "NO_SUBSCRIPTION")
	})
}

func TestAdmission_RecordsUsageWithFinalStatus(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
	fullKey := env.newClient(t, mustPlan(t, 10, 0, nil), nil)

	env.request("/api/v1/services/weather", fullKey)
	env.request("/api/v1/services/broken", fullKey)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.recorder.Stop(ctx))

	events, err := env.usageEventRepo.FindSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 2)

	statuses := map[string]int{}
	for _, e := range events {
		statuses[e.Endpoint] = e.StatusCode
	}
	assert.Equal(t, http.StatusOK, statuses["/api/v1/services/weather"])
	assert.Equal(t, http.StatusBadGateway, statuses["/api/v1/services/broken"])
}

func TestAdmission_DeniedAttemptsAreAttributed(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
	fullKey := env.newClient(t, mustPlan(t, 1, 0, nil), nil)

	env.request("/api/v1/services/weather", fullKey)
	denied := env.request("/api/v1/services/weather", fullKey)
	require.Equal(t, http.StatusTooManyRequests, denied.Code)

	// unknown keys have no identity to bill
	env.request("/api/v1/services/weather", "bogus")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.recorder.Stop(ctx))

	events, err := env.usageEventRepo.FindSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 2)

	statuses := []int{events[0].StatusCode, events[1].StatusCode}
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestAdmission_RateLimitBeforeQuota(t *testing.T) {
	env := setupGateway(t, config.QuotaConfig{AllowUnsubscribed: true})
	fullKey := env.newClient(t, mustPlan(t, 100, 2, nil), nil)

	assert.Equal(t, http.StatusOK, env.request("/api/v1/services/weather", fullKey).Code)
	assert.Equal(t, http.StatusOK, env.request("/api/v1/services/weather", fullKey).Code)

	w := env.request("/api/v1/services/weather", fullKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}
