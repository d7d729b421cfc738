// Package mcp exposes the read side of the subscription lifecycle as MCP
// tools and resources. Nothing here mutates contracts.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/portal/internal/subscriptions/application"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/queries"
)

// ToolDependencies provides the lifecycle and the default subscriber for
// MCP tools.
type ToolDependencies struct {
	Lifecycle *application.Lifecycle
	// SubscriberID answers tools called without a subscriber_id.
	SubscriberID uuid.UUID
}

type subscriberInput struct {
	SubscriberID string `json:"subscriber_id,omitempty"`
}

type contractsInput struct {
	SubscriberID string `json:"subscriber_id,omitempty"`
	OnlyLive     bool   `json:"only_live,omitempty"`
}

type priceInput struct {
	PlanID       string `json:"plan_id" jsonschema:"required"`
	BillingCycle string `json:"billing_cycle" jsonschema:"required"`
}

// PriceResult is the answer of subscriptions.price.
type PriceResult struct {
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	Price        string `json:"price"`
}

// RegisterTools registers the read-only subscription tools.
func RegisterTools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.Lifecycle == nil {
		return errors.New("lifecycle is required")
	}
	tools := readTools{deps: deps}

	srv.Tool("subscriptions.plans").
		Description("List the plan catalog, cheapest first").
		Handler(tools.plans)

	srv.Tool("subscriptions.price").
		Description("Price of a plan for a billing cycle (monthly or annual)").
		Handler(tools.price)

	srv.Tool("subscriptions.status").
		Description("Subscriber projection, current plan and active contract").
		Handler(tools.status)

	srv.Tool("subscriptions.active_contract").
		Description("Active contract of a subscriber, null when there is none").
		Handler(tools.activeContract)

	srv.Tool("subscriptions.contracts").
		Description("Contract history of a subscriber, newest first").
		Handler(tools.contracts)

	return nil
}

type readTools struct {
	deps ToolDependencies
}

func (t readTools) plans(ctx context.Context, _ struct{}) ([]queries.PlanDTO, error) {
	return t.deps.Lifecycle.Plans(ctx), nil
}

func (t readTools) price(_ context.Context, input priceInput) (*PriceResult, error) {
	price, err := t.deps.Lifecycle.Price(input.PlanID, input.BillingCycle)
	if err != nil {
		return nil, err
	}
	return &PriceResult{
		PlanID:       input.PlanID,
		BillingCycle: input.BillingCycle,
		Price:        price.StringFixed(2),
	}, nil
}

func (t readTools) status(ctx context.Context, input subscriberInput) (*queries.SubscriptionDTO, error) {
	id, err := t.subscriber(input.SubscriberID)
	if err != nil {
		return nil, err
	}
	return t.deps.Lifecycle.Subscription(ctx, id)
}

func (t readTools) activeContract(ctx context.Context, input subscriberInput) (*queries.ContractDTO, error) {
	id, err := t.subscriber(input.SubscriberID)
	if err != nil {
		return nil, err
	}
	return t.deps.Lifecycle.ActiveContract(ctx, id)
}

func (t readTools) contracts(ctx context.Context, input contractsInput) ([]queries.ContractDTO, error) {
	id, err := t.subscriber(input.SubscriberID)
	if err != nil {
		return nil, err
	}
	return t.deps.Lifecycle.Contracts(ctx, id, input.OnlyLive)
}

// subscriber resolves the subscriber_id argument, falling back to the
// configured subscriber.
func (t readTools) subscriber(value string) (uuid.UUID, error) {
	if value == "" {
		if t.deps.SubscriberID == uuid.Nil {
			return uuid.Nil, errors.New("subscriber_id is required")
		}
		return t.deps.SubscriberID, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subscriber_id: %w", err)
	}
	return id, nil
}
