package billing

import (
	"context"
	"time"

	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UsageEvent is an immutable record of a single admission attempt against a
// metered endpoint. Events are append-only: corrections are new events, never
// updates. Analytics are derived from events, but the authoritative quota
// counter lives on the Subscription, not here — a duplicate event from a
// retried append inflates a chart, never a bill.
type UsageEvent struct {
	shared.BaseEntity
	OwnerID    uuid.UUID
	KeyID      uuid.UUID
	Endpoint   string
	StatusCode int
	OccurredAt time.Time
}

// NewUsageEvent creates a usage event for one admission attempt.
func NewUsageEvent(ownerID, keyID uuid.UUID, endpoint string, statusCode int, occurredAt time.Time) (*UsageEvent, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if keyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_KEY", "Key ID cannot be empty")
	}
	if endpoint == "" {
		return nil, shared.NewDomainError("INVALID_ENDPOINT", "Endpoint cannot be empty")
	}

	return &UsageEvent{
		BaseEntity: shared.NewBaseEntity(),
		OwnerID:    ownerID,
		KeyID:      keyID,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		OccurredAt: occurredAt.UTC(),
	}, nil
}

// Succeeded reports whether the recorded outcome was a 2xx.
func (e *UsageEvent) Succeeded() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// UsageStats is an aggregate over a window of usage events.
type UsageStats struct {
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	RequestsByEndpoint map[string]int64 `json:"requests_by_endpoint"`
	RequestsByDay      map[string]int64 `json:"requests_by_day"`
}

// NewUsageStats aggregates events into per-endpoint and per-day buckets.
func NewUsageStats(events []*UsageEvent) UsageStats {
	stats := UsageStats{
		RequestsByEndpoint: make(map[string]int64),
		RequestsByDay:      make(map[string]int64),
	}
	for _, e := range events {
		stats.TotalRequests++
		if e.Succeeded() {
			stats.SuccessfulRequests++
		} else {
			stats.FailedRequests++
		}
		stats.RequestsByEndpoint[e.Endpoint]++
		stats.RequestsByDay[e.OccurredAt.Format("2006-01-02")]++
	}
	return stats
}

// UsageEventRepository is the persistence port for usage events. Events carry
// indexes on (owner_id, occurred_at) and (key_id, occurred_at) for range scans.
type UsageEventRepository interface {
	Save(ctx context.Context, event *UsageEvent) error
	SaveBatch(ctx context.Context, events []*UsageEvent) error
	FindByOwnerSince(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]*UsageEvent, error)
	FindSince(ctx context.Context, since time.Time) ([]*UsageEvent, error)
	// DeleteBefore prunes events older than the cutoff; retention is an
	// operational policy, not part of admission.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
