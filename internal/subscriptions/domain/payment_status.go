package domain

import (
	"fmt"
	"strings"
)

// PaymentStatus is the payment state of a contract.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
)

// ParsePaymentStatus parses one of the four contract payment statuses.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if status == "canceled" {
		status = PaymentCancelled
	}
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, s)
	}
	return status, nil
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentExpired, PaymentCancelled:
		return true
	}
	return false
}

// IsLive reports whether a contract in this status can be the active one.
func (s PaymentStatus) IsLive() bool {
	return s == PaymentPending || s == PaymentPaid
}

// Collapsed maps the status onto the two values the subscriber record keeps.
func (s PaymentStatus) Collapsed() PaymentStatus {
	if s == PaymentPaid {
		return PaymentPaid
	}
	return PaymentPending
}

func (s PaymentStatus) String() string { return string(s) }
