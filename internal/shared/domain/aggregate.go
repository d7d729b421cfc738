// Package domain is the shared kernel: aggregate roots and the events they
// raise.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity has an identity and audit timestamps.
type Entity interface {
	ID() uuid.UUID
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// AggregateRoot is the unit a repository saves. It queues the events raised
// since it was loaded until they are written to the outbox.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	ClearDomainEvents()
	Version() int
}

// BaseAggregateRoot implements AggregateRoot for embedding. Version 0 means
// never stored; repositories use it for optimistic concurrency.
type BaseAggregateRoot struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	version   int
	pending   []DomainEvent
}

// NewBaseAggregateRoot starts an unsaved aggregate. uuid.Nil picks a random ID.
func NewBaseAggregateRoot(id uuid.UUID) BaseAggregateRoot {
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	return BaseAggregateRoot{id: id, createdAt: now, updatedAt: now}
}

// RehydrateBaseAggregateRoot restores stored state.
func RehydrateBaseAggregateRoot(id uuid.UUID, createdAt, updatedAt time.Time, version int) BaseAggregateRoot {
	return BaseAggregateRoot{id: id, createdAt: createdAt, updatedAt: updatedAt, version: version}
}

func (a *BaseAggregateRoot) ID() uuid.UUID        { return a.id }
func (a *BaseAggregateRoot) CreatedAt() time.Time { return a.createdAt }
func (a *BaseAggregateRoot) UpdatedAt() time.Time { return a.updatedAt }
func (a *BaseAggregateRoot) Version() int         { return a.version }
func (a *BaseAggregateRoot) IsNew() bool          { return a.version == 0 }

// SetVersion records the version the repository wrote.
func (a *BaseAggregateRoot) SetVersion(version int) { a.version = version }

// Touch bumps updatedAt to now, never backwards.
func (a *BaseAggregateRoot) Touch() {
	if now := time.Now().UTC(); now.After(a.updatedAt) {
		a.updatedAt = now
	}
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

func (a *BaseAggregateRoot) DomainEvents() []DomainEvent { return a.pending }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }
