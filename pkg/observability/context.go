package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Attribute keys shared by log records and metric tags.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	ActorIDKey       = "actor_id"
	SubscriberIDKey  = "subscriber_id"
	OperationKey     = "operation"
	OutcomeKey       = "outcome"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
)

// requestScope is the set of identifiers carried through a request. It is
// stored by value so each With* call leaves the parent context untouched.
type requestScope struct {
	correlationID string
	requestID     string
	actorID       string
	subscriberID  string
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) requestScope {
	if ctx == nil {
		return requestScope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(requestScope)
	return scope
}

func withScope(ctx context.Context, update func(*requestScope)) context.Context {
	scope := scopeFrom(ctx)
	update(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

// WithCorrelationID tags ctx with a correlation id, generating one when id
// is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withScope(ctx, func(s *requestScope) { s.correlationID = id })
}

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).correlationID
}

// WithRequestID tags ctx with a request id, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withScope(ctx, func(s *requestScope) { s.requestID = id })
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

// WithActorID records who triggered the request: the subscriber themselves,
// an operator, or a service name.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return withScope(ctx, func(s *requestScope) { s.actorID = actorID })
}

// ActorIDFromContext returns the actor id or "".
func ActorIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).actorID
}

// WithSubscriberID records the subscriber a lifecycle operation acts on.
func WithSubscriberID(ctx context.Context, subscriberID string) context.Context {
	return withScope(ctx, func(s *requestScope) { s.subscriberID = subscriberID })
}

// SubscriberIDFromContext returns the subscriber id or "".
func SubscriberIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).subscriberID
}

// NewRequestContext starts a request scope with a fresh request id. The
// correlation id is inherited when the caller supplied one.
func NewRequestContext(ctx context.Context, correlationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), correlationID)
}

// scopeAttrs returns the non-empty identifiers of ctx as log attributes.
func scopeAttrs(ctx context.Context) []slog.Attr {
	scope := scopeFrom(ctx)
	attrs := make([]slog.Attr, 0, 4)
	for _, kv := range [...]struct{ key, value string }{
		{CorrelationIDKey, scope.correlationID},
		{RequestIDKey, scope.requestID},
		{ActorIDKey, scope.actorID},
		{SubscriberIDKey, scope.subscriberID},
	} {
		if kv.value != "" {
			attrs = append(attrs, slog.String(kv.key, kv.value))
		}
	}
	return attrs
}
