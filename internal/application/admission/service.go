// Package admission decides whether a request presenting an API key may reach
// a metered service. The pipeline runs credential resolution, service
// authorization, the per-minute window, and the quota reservation in that
// order, so a request never burns quota unless everything ahead of the
// reservation passed.
package admission

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appbilling "github.com/apiplatform/backend/internal/application/billing"
	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/credential"
	"github.com/apiplatform/backend/internal/domain/identity"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/infrastructure/ratelimit"
	"github.com/apiplatform/backend/internal/infrastructure/telemetry"
)

// Ticket is the proof of admission handed to the request context. It carries
// everything downstream needs: the resolved key for attribution, the quota
// snapshot for response headers, and the plan for anything else.
type Ticket struct {
	Key         *credential.APIKey
	Reservation billing.Reservation
	Plan        *billing.Plan
}

// Service runs the admission pipeline.
type Service struct {
	keyRepo  credential.Repository
	userRepo identity.Repository
	quota    *appbilling.QuotaService
	limiter  ratelimit.Limiter
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an admission service. Metrics may be nil.
func NewService(
	keyRepo credential.Repository,
	userRepo identity.Repository,
	quota *appbilling.QuotaService,
	limiter ratelimit.Limiter,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		keyRepo:  keyRepo,
		userRepo: userRepo,
		quota:    quota,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Admit runs the full pipeline for one request. On denial the returned error
// is always a *shared.DomainError; a nil error means the request is admitted
// and one unit of quota is reserved (unless the owner is unlimited).
//
// When a denial happens after the credential resolved, the ticket still comes
// back carrying the key, so the caller can attribute the denied attempt in
// the usage log. Denials before resolution return a nil ticket: there is no
// identity to bill them to.
//
// A malformed key and an unknown key produce the same error, so responses
// leak nothing about which prefixes exist.
func (s *Service) Admit(ctx context.Context, presentedKey, service string) (*Ticket, error) {
	ticket, err := s.admit(ctx, presentedKey, service)
	if s.metrics != nil {
		if err != nil {
			s.metrics.DenialsTotal.WithLabelValues(denyCode(err)).Inc()
		} else {
			s.metrics.AdmissionsTotal.WithLabelValues(service).Inc()
		}
	}
	return ticket, err
}

func (s *Service) admit(ctx context.Context, presentedKey, service string) (*Ticket, error) {
	if presentedKey == "" {
		return nil, shared.ErrInvalidCredential
	}

	key, err := s.keyRepo.FindByDigest(ctx, credential.Digest(presentedKey))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredential
		}
		s.logger.Error("Key directory lookup failed", zap.Error(err))
		return nil, shared.ErrStoreUnavailable
	}

	now := s.now().UTC()
	if !key.IsUsable(now) {
		return &Ticket{Key: key}, shared.ErrCredentialInactive
	}

	owner, err := s.userRepo.FindByID(ctx, key.OwnerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Keys outlive deleted owners only through operator error.
			return &Ticket{Key: key}, shared.ErrCredentialInactive
		}
		s.logger.Error("Owner lookup failed", zap.Error(err))
		return &Ticket{Key: key}, shared.ErrStoreUnavailable
	}
	if !owner.IsActive {
		return &Ticket{Key: key}, shared.ErrUserSuspended
	}

	plan, err := s.quota.Entitlements(ctx, key.OwnerID)
	if err != nil {
		return &Ticket{Key: key}, err
	}

	if !key.AllowsService(service) {
		return &Ticket{Key: key}, shared.ErrServiceNotAllowed
	}
	if plan != nil && !plan.AllowsService(service) {
		return &Ticket{Key: key}, shared.ErrServiceNotAllowed
	}

	if plan != nil && plan.RateLimitPerMinute > 0 && s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, key.OwnerID.String(), plan.RateLimitPerMinute)
		if err != nil {
			// The window is burst protection, not billing; losing it does
			// not justify an outage.
			s.logger.Warn("Rate limiter unavailable, skipping window", zap.Error(err))
		} else if !ok {
			return &Ticket{Key: key}, shared.ErrRateLimited
		}
	}

	result, err := s.quota.Reserve(ctx, key.OwnerID)
	if err != nil {
		return &Ticket{Key: key}, err
	}

	return &Ticket{
		Key:         key,
		Reservation: result.Reservation,
		Plan:        result.Plan,
	}, nil
}

// Refund returns the admitted request's reservation to the ledger. Used when
// policy refunds downstream server errors.
func (s *Service) Refund(ctx context.Context, ticket *Ticket) {
	if ticket == nil || ticket.Reservation.Unlimited {
		return
	}
	if err := s.quota.Release(ctx, ticket.Key.OwnerID); err != nil {
		s.logger.Error("Failed to release reservation",
			zap.String("owner_id", ticket.Key.OwnerID.String()),
			zap.Error(err))
	}
}

// RefundsServerErrors reports whether 5xx outcomes get their unit back.
func (s *Service) RefundsServerErrors() bool {
	return s.quota.RefundsServerErrors()
}

func denyCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}
