package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the kind shared by every missing-record error.
	ErrNotFound           = errors.New("not found")
	ErrContractNotFound   = fmt.Errorf("contract %w", ErrNotFound)
	ErrSubscriberNotFound = fmt.Errorf("subscriber %w", ErrNotFound)

	ErrUnknownPlan       = errors.New("unknown plan")
	ErrInvalidPlanChange = errors.New("invalid plan change")
	ErrAlreadyOnPlan     = fmt.Errorf("%w: already on this plan", ErrInvalidPlanChange)

	ErrInvalidBillingCycle  = errors.New("invalid billing cycle")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrAmountPrecision      = errors.New("amount has more than two decimal places")
	ErrMissingSubscriber    = errors.New("subscriber id is required")
	ErrInvalidPeriod        = errors.New("contract end date is before its start date")
	ErrInvalidDate          = errors.New("invalid date")

	// ErrDuplicateRenewal is returned by the store when a contract already
	// has a live renewal.
	ErrDuplicateRenewal = errors.New("contract already has a live renewal")
	// ErrConcurrentModification is returned by the store when a contract was
	// changed since it was read.
	ErrConcurrentModification = errors.New("contract was modified concurrently")
	// ErrMutationInProgress is returned when another lifecycle change for the
	// same subscriber holds the lock for too long.
	ErrMutationInProgress = errors.New("another change for this subscriber is in progress")

	ErrPersistenceFailure = errors.New("persistence failure")
)

// PersistenceError wraps a store error. It matches both ErrPersistenceFailure
// and the original error with errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError wraps err unless it is nil or already a PersistenceError.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistenceFailure, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}
