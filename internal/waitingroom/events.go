package waitingroom

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventEntryAdmitted       = "ENTRY_ADMITTED"
	EventConsultationStarted = "CONSULTATION_STARTED"
	EventEntryCompleted      = "ENTRY_COMPLETED"
	EventEntryCancelled      = "ENTRY_CANCELLED"
	EventPriorityChanged     = "PRIORITY_CHANGED"
	EventNoteAppended        = "NOTE_APPENDED"
	EventEntryDeleted        = "ENTRY_DELETED"
)

// Notifier is called after every successful mutation so presentation layers
// can refresh. Implementations must never fail the mutation: it is already
// committed by the time they run.
type Notifier interface {
	EntryChanged(ctx context.Context, event string, entry *WaitingEntry)
}

type NopNotifier struct{}

func (NopNotifier) EntryChanged(context.Context, string, *WaitingEntry) {}

type entryEvent struct {
	Event                 string     `json:"event"`
	EntryID               string     `json:"entry_id"`
	ClientID              string     `json:"client_id"`
	PetID                 string     `json:"pet_id"`
	Status                string     `json:"status"`
	Priority              string     `json:"priority"`
	ArrivalTime           time.Time  `json:"arrival_time"`
	ConsultationStartedAt *time.Time `json:"consultation_started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	OccurredAt            time.Time  `json:"occurred_at"`
}

// RedisNotifier publishes entry snapshots on a pub/sub channel. Publish
// failures are logged and dropped.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) EntryChanged(ctx context.Context, event string, entry *WaitingEntry) {
	payload, err := json.Marshal(entryEvent{
		Event:                 event,
		EntryID:               entry.ID.String(),
		ClientID:              entry.ClientID.String(),
		PetID:                 entry.PetID.String(),
		Status:                string(entry.Status),
		Priority:              string(entry.Priority),
		ArrivalTime:           entry.ArrivalTime,
		ConsultationStartedAt: entry.ConsultationStartedAt,
		CompletedAt:           entry.CompletedAt,
		OccurredAt:            time.Now().UTC(),
	})
	if err != nil {
		log.Printf("failed to marshal %s event for entry %s: %v", event, entry.ID, err)
		return
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		log.Printf("failed to publish %s event for entry %s: %v", event, entry.ID, err)
	}
}
