package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PlanID identifies a plan in the catalog.
type PlanID string

const (
	PlanFree       PlanID = "free"
	PlanEssential  PlanID = "essential"
	PlanPremium    PlanID = "premium"
	PlanPremiumVIP PlanID = "premium_vip"

	// legacyEssential is the spelling older subscriber rows still carry.
	legacyEssential = "essencial"
)

// ParsePlanID normalizes a plan identifier. It does not check the catalog.
func ParsePlanID(s string) PlanID {
	id := strings.ToLower(strings.TrimSpace(s))
	id = strings.ReplaceAll(id, "-", "_")
	if id == legacyEssential {
		return PlanEssential
	}
	return PlanID(id)
}

func (id PlanID) String() string { return string(id) }

// Plan is an immutable catalog entry.
type Plan struct {
	ID           PlanID
	Name         string
	MonthlyPrice decimal.Decimal
	AnnualPrice  decimal.Decimal
	Rank         int
	Features     []string
}

// Price returns the plan price for a billing cycle.
func (p Plan) Price(cycle BillingCycle) decimal.Decimal {
	if cycle == BillingAnnual {
		return p.AnnualPrice
	}
	return p.MonthlyPrice
}

// PlanChangeDirection classifies a plan change by rank.
type PlanChangeDirection string

const (
	PlanUpgrade   PlanChangeDirection = "upgrade"
	PlanDowngrade PlanChangeDirection = "downgrade"
)

// Catalog is the static table of plans.
type Catalog struct {
	plans map[PlanID]Plan
	order []PlanID
}

// NewCatalog builds a catalog. Plan ids must be unique, prices non-negative.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[PlanID]Plan, len(plans))}
	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan id is required")
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan %q", p.ID)
		}
		if p.MonthlyPrice.IsNegative() || p.AnnualPrice.IsNegative() {
			return nil, fmt.Errorf("plan %q: %w", p.ID, ErrNegativeAmount)
		}
		p.Features = append([]string(nil), p.Features...)
		c.plans[p.ID] = p
	}
	c.order = lo.Keys(c.plans)
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.plans[c.order[i]].Rank < c.plans[c.order[j]].Rank
	})
	return c, nil
}

// DefaultCatalog returns the portal's plan table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Plan{
			ID:           PlanFree,
			Name:         "Free",
			MonthlyPrice: decimal.Zero,
			AnnualPrice:  decimal.Zero,
			Rank:         0,
			Features:     []string{"Basic listing", "Contact phone"},
		},
		Plan{
			ID:           PlanEssential,
			Name:         "Essential",
			MonthlyPrice: decimal.RequireFromString("49.90"),
			AnnualPrice:  decimal.RequireFromString("499.00"),
			Rank:         1,
			Features:     []string{"Basic listing", "Contact phone", "Photo gallery", "Social links"},
		},
		Plan{
			ID:           PlanPremium,
			Name:         "Premium",
			MonthlyPrice: decimal.RequireFromString("99.90"),
			AnnualPrice:  decimal.RequireFromString("999.00"),
			Rank:         2,
			Features:     []string{"Basic listing", "Contact phone", "Photo gallery", "Social links", "Featured placement", "Visit analytics"},
		},
		Plan{
			ID:           PlanPremiumVIP,
			Name:         "Premium VIP",
			MonthlyPrice: decimal.RequireFromString("199.90"),
			AnnualPrice:  decimal.RequireFromString("1999.00"),
			Rank:         3,
			Features:     []string{"Basic listing", "Contact phone", "Photo gallery", "Social links", "Featured placement", "Visit analytics", "Top of category", "Priority support"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every plan ordered by rank ascending.
func (c *Catalog) All() []Plan {
	return lo.Map(c.order, func(id PlanID, _ int) Plan {
		return c.plans[id]
	})
}

// Get returns the plan with the given id or ErrUnknownPlan.
func (c *Catalog) Get(id PlanID) (Plan, error) {
	p, ok := c.plans[ParsePlanID(string(id))]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}

// Has reports whether the catalog knows the plan.
func (c *Catalog) Has(id PlanID) bool {
	_, err := c.Get(id)
	return err == nil
}

// Price returns the price of a plan for a billing cycle. Unknown plans fail
// with ErrUnknownPlan.
func (c *Catalog) Price(id PlanID, cycle BillingCycle) (decimal.Decimal, error) {
	p, err := c.Get(id)
	if err != nil {
		return decimal.Zero, err
	}
	if !cycle.IsValid() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidBillingCycle, cycle)
	}
	return p.Price(cycle), nil
}

// Direction classifies a change between two known plans.
func (c *Catalog) Direction(from, to PlanID) (PlanChangeDirection, error) {
	fromPlan, err := c.Get(from)
	if err != nil {
		return "", err
	}
	toPlan, err := c.Get(to)
	if err != nil {
		return "", err
	}
	if toPlan.Rank > fromPlan.Rank {
		return PlanUpgrade, nil
	}
	return PlanDowngrade, nil
}
