// Package application exposes the subscription contract lifecycle as an
// in-process library.
package application

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/portal/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/pkg/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lifecycle bundles the lifecycle commands and queries behind timing,
// logging and metrics.
type Lifecycle struct {
	catalog *domain.Catalog
	clock   domain.Clock
	logger  *slog.Logger
	metrics observability.Metrics

	createContract      *commands.CreateContractHandler
	renewContract       *commands.RenewContractHandler
	updatePaymentStatus *commands.UpdatePaymentStatusHandler
	changePlan          *commands.ChangePlanHandler

	listPlans      *queries.ListPlansHandler
	activeContract *queries.GetActiveContractHandler
	listContracts  *queries.ListContractsHandler
	subscription   *queries.GetSubscriptionHandler
}

// NewLifecycle wires the handlers. Nil logger and metrics fall back to the
// default logger and no-op metrics.
func NewLifecycle(deps commands.Deps, logger *slog.Logger, metrics observability.Metrics) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if deps.Catalog == nil {
		deps.Catalog = domain.DefaultCatalog()
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}

	return &Lifecycle{
		catalog: deps.Catalog,
		clock:   deps.Clock,
		logger:  logger,
		metrics: metrics,

		createContract:      commands.NewCreateContractHandler(deps),
		renewContract:       commands.NewRenewContractHandler(deps),
		updatePaymentStatus: commands.NewUpdatePaymentStatusHandler(deps),
		changePlan:          commands.NewChangePlanHandler(deps),

		listPlans:      queries.NewListPlansHandler(deps.Catalog),
		activeContract: queries.NewGetActiveContractHandler(deps.Contracts, deps.Clock),
		listContracts:  queries.NewListContractsHandler(deps.Contracts, deps.Clock),
		subscription:   queries.NewGetSubscriptionHandler(deps.Subscribers, deps.Contracts, deps.Catalog, deps.Clock),
	}
}

// Today returns the billing calendar's current date.
func (l *Lifecycle) Today() domain.Date {
	return l.clock.Today()
}

// Plans returns the catalog ordered by rank.
func (l *Lifecycle) Plans(ctx context.Context) []queries.PlanDTO {
	return l.listPlans.Handle(ctx)
}

// Plan returns one catalog plan.
func (l *Lifecycle) Plan(id string) (queries.PlanDTO, error) {
	p, err := l.catalog.Get(domain.ParsePlanID(id))
	if err != nil {
		return queries.PlanDTO{}, err
	}
	return queries.ToPlanDTO(p), nil
}

// Price returns the catalog price of a plan for a billing cycle.
func (l *Lifecycle) Price(planID, billingCycle string) (decimal.Decimal, error) {
	cycle, err := domain.ParseBillingCycle(billingCycle)
	if err != nil {
		return decimal.Zero, err
	}
	return l.catalog.Price(domain.ParsePlanID(planID), cycle)
}

// ActiveContract returns the subscriber's active contract, or nil.
func (l *Lifecycle) ActiveContract(ctx context.Context, subscriberID uuid.UUID) (*queries.ContractDTO, error) {
	return l.activeContract.Handle(ctx, queries.GetActiveContractQuery{SubscriberID: subscriberID})
}

// Contracts returns the subscriber's contract history, newest first.
func (l *Lifecycle) Contracts(ctx context.Context, subscriberID uuid.UUID, onlyLive bool) ([]queries.ContractDTO, error) {
	return l.listContracts.Handle(ctx, queries.ListContractsQuery{SubscriberID: subscriberID, OnlyLive: onlyLive})
}

// Subscription returns the subscriber's projection, plan and active contract.
func (l *Lifecycle) Subscription(ctx context.Context, subscriberID uuid.UUID) (*queries.SubscriptionDTO, error) {
	return l.subscription.Handle(ctx, queries.GetSubscriptionQuery{SubscriberID: subscriberID})
}

// CreateContract opens a contract and updates the subscriber projection.
func (l *Lifecycle) CreateContract(ctx context.Context, cmd commands.CreateContractCommand) (*queries.ContractDTO, error) {
	ctx = observability.WithSubscriberID(ctx, cmd.SubscriberID.String())
	logger := observability.LogOperation(l.logger, "create_contract", "plan_id", cmd.PlanID)
	result, err := observability.TimeOperationResult(ctx, logger, l.metrics, "subscriptions.create_contract", func() (*commands.CreateContractResult, error) {
		return l.createContract.Handle(ctx, cmd)
	})
	if err != nil {
		return nil, err
	}

	c := result.Contract
	l.metrics.Counter(observability.MetricContractsCreated, 1,
		observability.T("plan", string(c.PlanID())),
		observability.T("billing_cycle", string(c.BillingCycle())),
	)
	logger.InfoContext(ctx, "contract created", "contract_id", c.ID().String(), "end_date", c.EndDate().String())
	return l.contractDTO(c), nil
}

// RenewContract opens the next term of a contract. Renewing a contract that
// already has a live renewal returns that renewal.
func (l *Lifecycle) RenewContract(ctx context.Context, contractID uuid.UUID) (*queries.ContractDTO, error) {
	logger := observability.LogOperation(l.logger, "renew_contract", "contract_id", contractID.String())
	result, err := observability.TimeOperationResult(ctx, logger, l.metrics, "subscriptions.renew_contract", func() (*commands.RenewContractResult, error) {
		return l.renewContract.Handle(ctx, commands.RenewContractCommand{ContractID: contractID})
	})
	if err != nil {
		return nil, err
	}

	c := result.Contract
	if result.Created {
		l.metrics.Counter(observability.MetricContractsRenewed, 1, observability.T("plan", string(c.PlanID())))
		logger.InfoContext(ctx, "contract renewed", "renewal_id", c.ID().String(), "start_date", c.StartDate().String())
	} else {
		logger.InfoContext(ctx, "renewal already exists", "renewal_id", c.ID().String())
	}
	return l.contractDTO(c), nil
}

// UpdatePaymentStatus moves a contract's payment status. A paid contract
// enables the subscriber.
func (l *Lifecycle) UpdatePaymentStatus(ctx context.Context, contractID uuid.UUID, status string) (*queries.ContractDTO, error) {
	logger := observability.LogOperation(l.logger, "update_payment_status", "contract_id", contractID.String(), "status", status)
	result, err := observability.TimeOperationResult(ctx, logger, l.metrics, "subscriptions.update_payment_status", func() (*commands.UpdatePaymentStatusResult, error) {
		return l.updatePaymentStatus.Handle(ctx, commands.UpdatePaymentStatusCommand{ContractID: contractID, Status: status})
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		l.metrics.Counter(observability.MetricPaymentStatusChanges, 1, observability.T("status", string(result.Contract.PaymentStatus())))
	} else {
		logger.DebugContext(ctx, "payment status unchanged")
	}
	return l.contractDTO(result.Contract), nil
}

// ChangePlanResult is the outcome of a plan change.
type ChangePlanResult struct {
	Subscriber queries.SubscriberDTO `json:"subscriber"`
	Contract   queries.ContractDTO   `json:"contract"`
	Direction  string                `json:"direction"`
}

// ChangePlan moves a subscriber to another plan and opens a pending contract
// priced from the catalog.
func (l *Lifecycle) ChangePlan(ctx context.Context, cmd commands.ChangePlanCommand) (*ChangePlanResult, error) {
	ctx = observability.WithSubscriberID(ctx, cmd.SubscriberID.String())
	logger := observability.LogOperation(l.logger, "change_plan", "plan_id", cmd.PlanID)
	result, err := observability.TimeOperationResult(ctx, logger, l.metrics, "subscriptions.change_plan", func() (*commands.ChangePlanResult, error) {
		return l.changePlan.Handle(ctx, cmd)
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "plan changed", "direction", string(result.Direction), "contract_id", result.Contract.ID().String())
	return &ChangePlanResult{
		Subscriber: queries.ToSubscriberDTO(result.Subscriber),
		Contract:   *l.contractDTO(result.Contract),
		Direction:  string(result.Direction),
	}, nil
}

func (l *Lifecycle) contractDTO(c *domain.Contract) *queries.ContractDTO {
	dto := queries.ToContractDTO(c, l.clock.Today())
	return &dto
}
