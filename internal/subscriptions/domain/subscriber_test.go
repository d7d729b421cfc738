package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscriber(t *testing.T) {
	id := uuid.New()
	s, err := NewSubscriber(id)

	require.NoError(t, err)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, PlanFree, s.PlanType())
	assert.Equal(t, PaymentPending, s.PaymentStatus())
	assert.False(t, s.Status())
	assert.True(t, s.ContractEndDate().IsZero())
	assert.True(t, s.IsNew())

	_, err = NewSubscriber(uuid.Nil)
	assert.ErrorIs(t, err, ErrMissingSubscriber)
}

func TestSubscriber_ApplyContract(t *testing.T) {
	s, err := NewSubscriber(uuid.New())
	require.NoError(t, err)
	today := MustParseDate("2024-01-15")

	c, err := NewContract(s.ID(), ContractTerms{
		PlanID:        PlanPremium,
		BillingCycle:  BillingAnnual,
		Amount:        decimal.RequireFromString("999.00"),
		PaymentStatus: PaymentPaid,
	}, today)
	require.NoError(t, err)

	s.ApplyContract(c)
	assert.Equal(t, PlanPremium, s.PlanType())
	assert.Equal(t, PaymentPaid, s.PaymentStatus())
	assert.Equal(t, today, s.ContractStartDate())
	assert.Equal(t, MustParseDate("2025-01-15"), s.ContractEndDate())
	assert.False(t, s.Status())

	t.Run("non-paid statuses collapse to pending", func(t *testing.T) {
		cancelled, err := NewContract(s.ID(), ContractTerms{
			PlanID:        PlanEssential,
			BillingCycle:  BillingMonthly,
			PaymentStatus: PaymentCancelled,
		}, today)
		require.NoError(t, err)

		s.ApplyContract(cancelled)
		assert.Equal(t, PaymentPending, s.PaymentStatus())
	})
}

func TestSubscriber_MarkPaid(t *testing.T) {
	s, err := NewSubscriber(uuid.New())
	require.NoError(t, err)

	assert.True(t, s.MarkPaid())
	assert.True(t, s.Status())
	assert.Equal(t, PaymentPaid, s.PaymentStatus())

	assert.False(t, s.MarkPaid())
}

func TestSubscriber_ChangePlan(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("legacy essential to premium is an upgrade", func(t *testing.T) {
		s := RehydrateSubscriber(SubscriberState{
			ID:            uuid.New(),
			PlanType:      "essencial",
			PaymentStatus: PaymentPaid,
			Status:        true,
		})
		require.Equal(t, PlanEssential, s.PlanType())

		direction, err := s.ChangePlan(catalog, PlanPremium)
		require.NoError(t, err)
		assert.Equal(t, PlanUpgrade, direction)
		assert.Equal(t, PlanPremium, s.PlanType())
		assert.Equal(t, PaymentPending, s.PaymentStatus())
		assert.True(t, s.Status())

		events := s.DomainEvents()
		require.Len(t, events, 1)
		changed, ok := events[0].(*SubscriberPlanChanged)
		require.True(t, ok)
		assert.Equal(t, "essential", changed.FromPlan)
		assert.Equal(t, "premium", changed.ToPlan)
		assert.Equal(t, "upgrade", changed.Direction)
		assert.Equal(t, RoutingSubscriberPlanChanged, changed.RoutingKey())
	})

	t.Run("downgrade", func(t *testing.T) {
		s := RehydrateSubscriber(SubscriberState{ID: uuid.New(), PlanType: PlanPremiumVIP})
		direction, err := s.ChangePlan(catalog, PlanFree)
		require.NoError(t, err)
		assert.Equal(t, PlanDowngrade, direction)
	})

	t.Run("same plan", func(t *testing.T) {
		s := RehydrateSubscriber(SubscriberState{ID: uuid.New(), PlanType: PlanPremium})
		_, err := s.ChangePlan(catalog, PlanPremium)
		assert.ErrorIs(t, err, ErrInvalidPlanChange)
		assert.ErrorIs(t, err, ErrAlreadyOnPlan)
		assert.Empty(t, s.DomainEvents())
	})

	t.Run("unknown target", func(t *testing.T) {
		s, err := NewSubscriber(uuid.New())
		require.NoError(t, err)
		_, err = s.ChangePlan(catalog, "diamond")
		assert.ErrorIs(t, err, ErrUnknownPlan)
		assert.Equal(t, PlanFree, s.PlanType())
	})

	t.Run("unknown current plan", func(t *testing.T) {
		s := RehydrateSubscriber(SubscriberState{ID: uuid.New(), PlanType: "gold"})
		_, err := s.ChangePlan(catalog, PlanPremium)
		assert.ErrorIs(t, err, ErrUnknownPlan)
	})
}

func TestRehydrateSubscriber_Defaults(t *testing.T) {
	s := RehydrateSubscriber(SubscriberState{ID: uuid.New(), PaymentStatus: PaymentExpired})
	assert.Equal(t, PlanFree, s.PlanType())
	assert.Equal(t, PaymentPending, s.PaymentStatus())
	assert.False(t, s.IsNew())
}
