package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/application/admission"
	"github.com/apiplatform/backend/internal/application/metering"
	"github.com/apiplatform/backend/internal/domain/billing"
	"github.com/apiplatform/backend/internal/domain/shared"
	"github.com/apiplatform/backend/internal/interfaces/http/dto"
)

const (
	// APIKeyHeader carries the presented credential on metered requests.
	APIKeyHeader = "X-API-Key"
	// TicketKey is the gin context key for the admission ticket.
	TicketKey = "admission_ticket"
)

// Admission gates every metered service route. It admits or denies via the
// admission pipeline, exposes the quota snapshot as response headers, records
// a usage event with the final status for every attributable attempt, and
// refunds the reservation on 5xx when policy says so.
func Admission(service *admission.Service, recorder *metering.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		serviceName := serviceFromPath(c.Request.URL.Path)
		presented := c.GetHeader(APIKeyHeader)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		ticket, err := service.Admit(c.Request.Context(), presented, serviceName)
		if err != nil {
			status := denyStatus(err)
			writeDenial(c, status, err)
			recordOutcome(recorder, ticket, endpoint, status, logger)
			return
		}

		setQuotaHeaders(c, ticket.Reservation)
		c.Set(TicketKey, ticket)

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError && service.RefundsServerErrors() {
			service.Refund(c.Request.Context(), ticket)
		}
		recordOutcome(recorder, ticket, endpoint, status, logger)
	}
}

// GetTicket returns the admission ticket from the gin context, or nil.
func GetTicket(c *gin.Context) *admission.Ticket {
	value, exists := c.Get(TicketKey)
	if !exists {
		return nil
	}
	ticket, ok := value.(*admission.Ticket)
	if !ok {
		return nil
	}
	return ticket
}

// serviceFromPath extracts the service name from a metered route path,
// e.g. /api/v1/services/weather -> weather.
func serviceFromPath(path string) string {
	const prefix = "/api/v1/services/"
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func denyStatus(err error) int {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.GetHTTPStatus(domainErr.Code)
	}
	return http.StatusInternalServerError
}

func writeDenial(c *gin.Context, status int, err error) {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		domainErr = shared.NewDomainError(dto.ErrCodeInternal, "An unexpected error occurred")
	}
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", "60")
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(
		domainErr.Code, domainErr.Message, GetRequestID(c)))
}

func setQuotaHeaders(c *gin.Context, r billing.Reservation) {
	if r.Unlimited {
		c.Header("X-Quota-Limit", "unlimited")
		return
	}
	remaining := r.Limit - r.Used
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-Quota-Limit", strconv.FormatInt(r.Limit, 10))
	c.Header("X-Quota-Remaining", strconv.FormatInt(remaining, 10))
	c.Header("X-Quota-Reset", r.ResetAt.UTC().Format(time.RFC3339))
}

// recordOutcome appends a usage event when the attempt resolved to a key.
// Unattributable attempts (no key, unknown key) are not logged as usage.
func recordOutcome(recorder *metering.Recorder, ticket *admission.Ticket, endpoint string, status int, logger *zap.Logger) {
	if ticket == nil || ticket.Key == nil || recorder == nil {
		return
	}
	event, err := billing.NewUsageEvent(ticket.Key.OwnerID, ticket.Key.ID, endpoint, status, time.Now())
	if err != nil {
		logger.Debug("Failed to build usage event", zap.Error(err))
		return
	}
	recorder.Record(event)
}
