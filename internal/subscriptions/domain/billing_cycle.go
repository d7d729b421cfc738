package domain

import (
	"fmt"
	"strings"
)

// BillingCycle is how often a contract is billed and how long it covers.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingAnnual  BillingCycle = "annual"
)

// ParseBillingCycle parses a billing cycle. "yearly" is read as annual.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return BillingMonthly, nil
	case "annual", "yearly", "year":
		return BillingAnnual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBillingCycle, s)
}

func (c BillingCycle) IsValid() bool {
	return c == BillingMonthly || c == BillingAnnual
}

func (c BillingCycle) String() string { return string(c) }

// EndDate returns the end of one term starting at start.
func (c BillingCycle) EndDate(start Date) Date {
	if c == BillingAnnual {
		return start.AddYears(1)
	}
	return start.AddMonths(1)
}
