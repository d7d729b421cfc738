package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// TelemetrySubscriber turns lifecycle events into metrics. Plan changes are
// counted per direction, everything else only as consumed events.
type TelemetrySubscriber struct {
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewTelemetrySubscriber creates a new telemetry subscriber.
func NewTelemetrySubscriber(metrics observability.Metrics, logger *slog.Logger) *TelemetrySubscriber {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TelemetrySubscriber{
		metrics: metrics,
		logger:  logger,
	}
}

// EventTypes returns the event types this subscriber handles.
func (s *TelemetrySubscriber) EventTypes() []string {
	return []string{
		domain.RoutingContractCreated,
		domain.RoutingContractRenewed,
		domain.RoutingContractPaymentStatusChanged,
		domain.RoutingSubscriberPlanChanged,
	}
}

// PlanChangedPayload is the payload of subscriptions.subscriber.plan_changed.
type PlanChangedPayload struct {
	SubscriberID string `json:"subscriber_id"`
	FromPlan     string `json:"from_plan"`
	ToPlan       string `json:"to_plan"`
	Direction    string `json:"direction"`
}

// Handle processes an event.
func (s *TelemetrySubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	s.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))

	switch event.RoutingKey {
	case domain.RoutingSubscriberPlanChanged:
		return s.handlePlanChanged(ctx, event)
	default:
		s.logger.DebugContext(ctx, "lifecycle event observed",
			"routing_key", event.RoutingKey,
			"aggregate_id", event.AggregateID,
		)
		return nil
	}
}

func (s *TelemetrySubscriber) handlePlanChanged(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var payload PlanChangedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode plan change payload: %w", err)
	}

	direction := domain.PlanChangeDirection(payload.Direction)
	if direction != domain.PlanUpgrade && direction != domain.PlanDowngrade {
		// No direction in the payload: fall back to catalog ranks.
		derived, err := domain.DefaultCatalog().Direction(domain.ParsePlanID(payload.FromPlan), domain.ParsePlanID(payload.ToPlan))
		if err != nil {
			s.logger.WarnContext(ctx, "plan change with unknown plan",
				"event_id", event.EventID,
				"from_plan", payload.FromPlan,
				"to_plan", payload.ToPlan,
			)
			return nil
		}
		direction = derived
	}

	s.metrics.Counter(observability.MetricPlanChanges, 1,
		observability.T("direction", string(direction)),
		observability.T("to_plan", payload.ToPlan),
	)

	s.logger.InfoContext(ctx, "plan change recorded",
		"subscriber_id", payload.SubscriberID,
		"from_plan", payload.FromPlan,
		"to_plan", payload.ToPlan,
		"direction", direction,
	)
	return nil
}
