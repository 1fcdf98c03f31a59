package waitingroom

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// rank orders priorities for the service queue; higher is served first.
func (p Priority) rank() int {
	switch p {
	case PriorityEmergency:
		return 2
	case PriorityUrgent:
		return 1
	default:
		return 0
	}
}

func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityNormal, PriorityUrgent, PriorityEmergency:
		return Priority(s), true
	}
	return "", false
}

type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusInConsultation Status = "in_consultation"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusWaiting, StatusInConsultation, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

type Client struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Name      string
	Species   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WaitingEntry is a single walk-in visit in the waiting room.
//
// ArrivalTime is set at admission and never changes. ConsultationStartedAt is
// set exactly once, when the entry moves to in_consultation. CompletedAt is
// set when the entry reaches a terminal status, completed or cancelled alike.
// Notes only ever grow; every append is a timestamped line.
type WaitingEntry struct {
	ID                    uuid.UUID
	ClientID              uuid.UUID
	PetID                 uuid.UUID
	ReasonForVisit        string
	Priority              Priority
	Status                Status
	ArrivalTime           time.Time
	ConsultationStartedAt *time.Time
	CompletedAt           *time.Time
	Notes                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// EntryView is an entry joined with the client and pet names, for search and
// history results.
type EntryView struct {
	WaitingEntry
	ClientName string
	PetName    string
}

// EntryPage is one page of search or history results.
type EntryPage struct {
	Items    []EntryView
	Page     int
	PageSize int
	Total    int
}

// SortServiceOrder sorts entries into the order they should be seen:
// priority first (emergency before urgent before normal), earliest arrival
// within the same priority band. The entry ID breaks exact arrival-time ties
// so repeated reads of the same snapshot agree.
func SortServiceOrder(entries []WaitingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() > b.Priority.rank()
		}
		if !a.ArrivalTime.Equal(b.ArrivalTime) {
			return a.ArrivalTime.Before(b.ArrivalTime)
		}
		return a.ID.String() < b.ID.String()
	})
}

// noteLine formats a single timestamped note line, and appendNote joins it to
// the existing notes without ever touching prior content.
func noteLine(at time.Time, text string) string {
	return "[" + at.UTC().Format(time.RFC3339) + "] " + text
}

func appendNote(existing string, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
