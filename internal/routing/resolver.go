package routing

import (
	"context"
	"errors"
	"strings"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"go.uber.org/zap"
)

// ErrRoutingNotFound is returned when no tenant owns the inbound call.
// Terminal for the call attempt; the webhook answers "not configured".
var ErrRoutingNotFound = errors.New("no tenant configured for routing key")

// Resolver determines which tenant owns an inbound call. An explicit tenant
// identifier (dedicated number, premium routing) is authoritative; otherwise
// the destination number is looked up in the shared routing table.
type Resolver struct {
	routes repository.TenantRepository
}

// NewResolver creates a tenant resolver over the routing table.
func NewResolver(routes repository.TenantRepository) *Resolver {
	return &Resolver{routes: routes}
}

// Resolve returns the owning tenant ID and effective plan for a call.
// No retries: a lookup miss or failure is terminal for this call attempt.
func (r *Resolver) Resolve(ctx context.Context, routingKey, explicitTenantID string) (string, string, error) {
	if explicitTenantID != "" {
		return explicitTenantID, domain.PlanPremium, nil
	}

	key := NormalizeNumber(routingKey)
	if key == "" || r.routes == nil {
		return "", "", ErrRoutingNotFound
	}

	tenantID, err := r.routes.ResolveRoute(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Base().Error("phone route lookup failed", zap.String("routing_key", key), zap.Error(err))
		}
		return "", "", ErrRoutingNotFound
	}
	return tenantID, domain.PlanBasic, nil
}

// NormalizeNumber strips whitespace and separator characters from a phone
// number, keeping the leading + of an E.164 number.
func NormalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	var b strings.Builder
	for i, ch := range number {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '+' && i == 0:
			b.WriteRune(ch)
		}
	}
	return b.String()
}
