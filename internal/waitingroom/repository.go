package waitingroom

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrPetNotFound    = errors.New("pet not found")
	ErrEntryNotFound  = errors.New("waiting entry not found")
)

// IdentityResolver resolves client and pet references at admission time.
// Resolution failures are validation errors to the queue engine, never
// retried.
type IdentityResolver interface {
	ResolveClient(ctx context.Context, id uuid.UUID) (*Client, error)
	ResolvePet(ctx context.Context, id uuid.UUID) (*Pet, error)
	PetBelongsToClient(ctx context.Context, petID, clientID uuid.UUID) (bool, error)
}

// EntryStore contains all persistence the queue engine, metrics and search
// need. It is the only shared mutable resource in the subsystem; every write
// goes through the queue engine's guarded operations.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry *WaitingEntry) (*WaitingEntry, error)
	GetEntryByID(ctx context.Context, id uuid.UUID) (*WaitingEntry, error)
	FindByPairAndStatus(ctx context.Context, clientID, petID uuid.UUID, status Status) (*WaitingEntry, error)
	FindByStatusIn(ctx context.Context, statuses ...Status) ([]WaitingEntry, error)
	FindByArrivalRange(ctx context.Context, from, to time.Time) ([]WaitingEntry, error)
	CountByStatus(ctx context.Context, status Status) (int, error)

	// UpdateEntryStatus is a compare-and-swap: the row is updated only if its
	// status still equals from. Moving to in_consultation stamps
	// consultation_started_at; moving to a terminal status stamps
	// completed_at. ErrEntryNotFound when the row is gone or the status
	// already moved on.
	UpdateEntryStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*WaitingEntry, error)
	UpdateEntryPriority(ctx context.Context, id uuid.UUID, priority Priority) (*WaitingEntry, error)
	AppendEntryNote(ctx context.Context, id uuid.UUID, line string) (*WaitingEntry, error)
	DeleteEntry(ctx context.Context, id uuid.UUID) error

	SearchEntries(ctx context.Context, term string, limit, offset int) ([]EntryView, int, error)
	EntriesByArrivalRange(ctx context.Context, from, to time.Time, limit, offset int) ([]EntryView, int, error)
}
