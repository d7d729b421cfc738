package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersistenceError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewPersistenceError("save contract", cause)

	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Contains(t, err.Error(), "save contract")

	assert.Same(t, err, NewPersistenceError("outer", err))
	assert.NoError(t, NewPersistenceError("noop", nil))
}

func TestNotFoundKinds(t *testing.T) {
	assert.ErrorIs(t, ErrContractNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrSubscriberNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrAlreadyOnPlan, ErrInvalidPlanChange)
}
