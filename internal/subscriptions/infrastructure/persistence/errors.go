package persistence

import (
	"fmt"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
)

// saveError maps a failed contract write onto the domain's error kinds.
func saveError(c *domain.Contract, err error) error {
	if c.IsRenewal() && database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateRenewal, c.RenewedFromID())
	}
	return domain.NewPersistenceError("save contract", err)
}

// checkVersionedUpdate bumps the contract version after an optimistic update,
// or reports that the stored row moved on.
func checkVersionedUpdate(c *domain.Contract, result database.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.NewPersistenceError("save contract", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: contract %s at version %d: %w",
			domain.ErrConcurrentModification, c.ID(), c.Version(), database.ErrStaleWrite)
	}
	c.SetVersion(c.Version() + 1)
	return nil
}
