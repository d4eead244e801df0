package db

import (
	"context"
	"time"
)

// DefinitionStore defines the storage operations for duty definitions
type DefinitionStore interface {
	GetDefinition(ctx context.Context, id string) (*DutyDefinition, error)
	ListActiveDefinitions(ctx context.Context) ([]DutyDefinition, error)
	InsertDefinition(ctx context.Context, def *DutyDefinition) error
	UpdateDefinition(ctx context.Context, def *DutyDefinition) error
	SetDefinitionStatus(ctx context.Context, id string, status DefinitionStatus) error
}

// ExceptionStore defines the storage operations for duty exceptions
type ExceptionStore interface {
	GetExceptions(ctx context.Context, definitionID, from, to string) ([]DutyException, error)
	InsertException(ctx context.Context, exc *DutyException) error
}

// InstanceStore defines the storage operations for duty instances.
// UpsertInstances is the engine's sole concurrency-correctness mechanism:
// each write is keyed by (definitionID, date) and a row that already exists
// is left untouched, along with its ledger and cursor bookkeeping.
type InstanceStore interface {
	GetInstance(ctx context.Context, id string) (*DutyInstance, error)
	GetInstances(ctx context.Context, definitionID, from, to string) ([]DutyInstance, error)
	GetScheduleRange(ctx context.Context, stableID, from, to string) ([]DutyInstance, error)
	UpsertInstances(ctx context.Context, writes []InstanceWrite) (created int, err error)
	// TransitionInstance moves an instance from one status to another and
	// reports whether the row actually changed, making repeated
	// transitions idempotent.
	TransitionInstance(ctx context.Context, id string, from, to InstanceStatus) (bool, error)
	SetInstanceProgress(ctx context.Context, id string, progress int, status InstanceStatus) error
	SetInstanceAssignee(ctx context.Context, id string, assigneeID *string, assigneeName string, origin AssignmentOrigin) error
	ListOverdueScheduled(ctx context.Context, asOf time.Time) ([]DutyInstance, error)
}

// LedgerStore defines the read side of the fairness ledger. Writes happen
// only through UpsertInstances.
type LedgerStore interface {
	GetLedgerEntries(ctx context.Context, definitionID, period string) ([]FairnessLedgerEntry, error)
}

// MemberStore defines the storage operations for stable members
type MemberStore interface {
	GetMember(ctx context.Context, id string) (*Member, error)
}

// Store is the full storage contract the engine needs.
// postgres.DB implements this interface.
type Store interface {
	DefinitionStore
	ExceptionStore
	InstanceStore
	LedgerStore
	MemberStore
}
