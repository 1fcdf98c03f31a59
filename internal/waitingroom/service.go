package waitingroom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/waiting-room/internal/redisclient"
)

var (
	ErrOwnershipMismatch    = errors.New("pet does not belong to client")
	ErrDuplicateActiveVisit = errors.New("a waiting entry already exists for this client and pet")
	ErrAdmissionInProgress  = errors.New("an admission for this client and pet is in progress, please retry")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrOperationNotAllowed  = errors.New("operation not allowed while consultation is active")
)

type Service struct {
	store    EntryStore
	ids      IdentityResolver
	locker   redisclient.Locker
	notifier Notifier
}

func NewService(store EntryStore, ids IdentityResolver, locker redisclient.Locker, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:    store,
		ids:      ids,
		locker:   locker,
		notifier: notifier,
	}
}

type AdmitInput struct {
	ClientID       uuid.UUID
	PetID          uuid.UUID
	ReasonForVisit string
	Priority       Priority  // defaults to normal when empty
	Notes          string    // optional initial note
	ArrivalTime    time.Time // defaults to now when zero
}

// Admit creates a waiting entry for a walk-in visit. A per-pair lock keeps
// the duplicate check and the insert together, so two concurrent admissions
// for the same client and pet cannot both pass the check; the partial unique
// index on the store backs this up if the lock service is down.
func (s *Service) Admit(ctx context.Context, input AdmitInput) (*WaitingEntry, error) {
	if strings.TrimSpace(input.ReasonForVisit) == "" {
		return nil, fmt.Errorf("%w: reason for visit is required", ErrInvalidArgument)
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityNormal
	} else if _, ok := ParsePriority(string(priority)); !ok {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, priority)
	}

	if _, err := s.ids.ResolveClient(ctx, input.ClientID); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve client: %w", err)
	}
	if _, err := s.ids.ResolvePet(ctx, input.PetID); err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve pet: %w", err)
	}

	owned, err := s.ids.PetBelongsToClient(ctx, input.PetID, input.ClientID)
	if err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}
	if !owned {
		return nil, ErrOwnershipMismatch
	}

	var created *WaitingEntry

	err = s.locker.WithPairLock(ctx, input.ClientID, input.PetID, func(lockCtx context.Context) error {
		// Inside the critical section re-check for an existing waiting entry
		existing, err := s.store.FindByPairAndStatus(lockCtx, input.ClientID, input.PetID, StatusWaiting)
		if err != nil && !errors.Is(err, ErrEntryNotFound) {
			return fmt.Errorf("check active visit: %w", err)
		}
		if existing != nil {
			return ErrDuplicateActiveVisit
		}

		arrival := input.ArrivalTime
		if arrival.IsZero() {
			arrival = time.Now().UTC()
		}

		entry := &WaitingEntry{
			ID:             uuid.New(),
			ClientID:       input.ClientID,
			PetID:          input.PetID,
			ReasonForVisit: input.ReasonForVisit,
			Priority:       priority,
			Status:         StatusWaiting,
			ArrivalTime:    arrival,
		}
		if note := strings.TrimSpace(input.Notes); note != "" {
			entry.Notes = noteLine(arrival, note)
		}

		created, err = s.store.CreateEntry(lockCtx, entry)
		if err != nil {
			return fmt.Errorf("create waiting entry: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAdmissionInProgress
		}
		if errors.Is(err, ErrDuplicateActiveVisit) {
			return nil, ErrDuplicateActiveVisit
		}
		return nil, err
	}

	s.notifier.EntryChanged(ctx, EventEntryAdmitted, created)

	return created, nil
}

// Start moves a waiting entry into consultation and stamps
// consultation_started_at.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	entry, err := s.store.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition("start", entry.Status) {
		return nil, fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, entry.Status)
	}

	updated, err := s.store.UpdateEntryStatus(ctx, id, StatusWaiting, StatusInConsultation, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			// Lost the race with a concurrent transition.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("start consultation: %w", err)
	}

	s.notifier.EntryChanged(ctx, EventConsultationStarted, updated)

	return updated, nil
}

// Complete closes out an active consultation and stamps completed_at.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	entry, err := s.store.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition("complete", entry.Status) {
		return nil, fmt.Errorf("%w: cannot complete from %s", ErrInvalidTransition, entry.Status)
	}

	updated, err := s.store.UpdateEntryStatus(ctx, id, StatusInConsultation, StatusCompleted, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete consultation: %w", err)
	}

	s.notifier.EntryChanged(ctx, EventEntryCompleted, updated)

	return updated, nil
}

// Cancel aborts a visit from either active status. The reason goes into the
// notes so the audit trail explains the cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*WaitingEntry, error) {
	entry, err := s.store.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition("cancel", entry.Status) {
		return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, entry.Status)
	}

	now := time.Now().UTC()

	updated, err := s.store.UpdateEntryStatus(ctx, id, entry.Status, StatusCancelled, now)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel entry: %w", err)
	}

	if reason = strings.TrimSpace(reason); reason != "" {
		updated, err = s.store.AppendEntryNote(ctx, id, noteLine(now, "cancelled: "+reason))
		if err != nil {
			return nil, fmt.Errorf("record cancellation reason: %w", err)
		}
	}

	s.notifier.EntryChanged(ctx, EventEntryCancelled, updated)

	return updated, nil
}

// SetPriority changes the priority of an entry that has not reached a
// terminal status. The service queue reflects the change on the next read;
// nothing is re-ranked in place.
func (s *Service) SetPriority(ctx context.Context, id uuid.UUID, priority Priority) (*WaitingEntry, error) {
	if priority == "" {
		return nil, fmt.Errorf("%w: priority is required", ErrInvalidArgument)
	}
	if _, ok := ParsePriority(string(priority)); !ok {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, priority)
	}

	entry, err := s.store.GetEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition("set_priority", entry.Status) {
		return nil, fmt.Errorf("%w: cannot change priority from %s", ErrInvalidTransition, entry.Status)
	}

	updated, err := s.store.UpdateEntryPriority(ctx, id, priority)
	if err != nil {
		return nil, fmt.Errorf("set priority: %w", err)
	}

	s.notifier.EntryChanged(ctx, EventPriorityChanged, updated)

	return updated, nil
}

// AppendNote adds a timestamped line to the entry's notes. Allowed in every
// status, terminal ones included: the audit trail outlives the visit.
func (s *Service) AppendNote(ctx context.Context, id uuid.UUID, text string) (*WaitingEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: note text is required", ErrInvalidArgument)
	}

	if _, err := s.store.GetEntryByID(ctx, id); err != nil {
		return nil, err
	}

	updated, err := s.store.AppendEntryNote(ctx, id, noteLine(time.Now().UTC(), text))
	if err != nil {
		return nil, fmt.Errorf("append note: %w", err)
	}

	s.notifier.EntryChanged(ctx, EventNoteAppended, updated)

	return updated, nil
}

// Delete hard-removes an entry. An active consultation must be completed or
// cancelled first, never silently deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	entry, err := s.store.GetEntryByID(ctx, id)
	if err != nil {
		return err
	}
	if !ValidTransition("delete", entry.Status) {
		return ErrOperationNotAllowed
	}

	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.notifier.EntryChanged(ctx, EventEntryDeleted, entry)

	return nil
}

// Get retrieves a single entry by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	return s.store.GetEntryByID(ctx, id)
}

// Queue returns the active entries, waiting and in consultation, in service
// order. The order is computed fresh on every call; no rank is persisted.
func (s *Service) Queue(ctx context.Context) ([]WaitingEntry, error) {
	entries, err := s.store.FindByStatusIn(ctx, StatusWaiting, StatusInConsultation)
	if err != nil {
		return nil, fmt.Errorf("load active entries: %w", err)
	}
	SortServiceOrder(entries)
	return entries, nil
}
