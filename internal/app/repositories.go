package app

import (
	"fmt"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/internal/subscriptions/infrastructure/persistence"
)

// Repositories is the persistence layer over one connection, in the SQL
// dialect of its driver.
type Repositories struct {
	Contracts   domain.ContractRepository
	Subscribers domain.SubscriberRepository
	Outbox      outbox.Repository
	UnitOfWork  *database.UnitOfWork
}

// NewRepositories builds the repositories for conn.Driver().
func NewRepositories(conn database.Connection) (*Repositories, error) {
	repos := &Repositories{UnitOfWork: database.NewUnitOfWork(conn)}
	switch driver := conn.Driver(); driver {
	case database.DriverPostgres:
		repos.Contracts = persistence.NewPostgresContractRepository(conn)
		repos.Subscribers = persistence.NewPostgresSubscriberRepository(conn)
		repos.Outbox = outbox.NewPostgresRepository(conn)
	case database.DriverSQLite:
		repos.Contracts = persistence.NewSQLiteContractRepository(conn)
		repos.Subscribers = persistence.NewSQLiteSubscriberRepository(conn)
		repos.Outbox = outbox.NewSQLiteRepository(conn)
	default:
		return nil, fmt.Errorf("no repositories for database driver %q", driver)
	}
	return repos, nil
}
