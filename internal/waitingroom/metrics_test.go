package waitingroom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func completedEntry(arrival, consultStart time.Time) WaitingEntry {
	completed := consultStart.Add(15 * time.Minute)
	return WaitingEntry{
		ID:                    uuid.New(),
		ClientID:              uuid.New(),
		PetID:                 uuid.New(),
		ReasonForVisit:        "checkup",
		Priority:              PriorityNormal,
		Status:                StatusCompleted,
		ArrivalTime:           arrival,
		ConsultationStartedAt: &consultStart,
		CompletedAt:           &completed,
	}
}

func TestAverageTimeToConsultation(t *testing.T) {
	store := NewMemStore()
	metrics := NewMetrics(store)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// 10 minutes and 15 minutes to consultation: mean 12.5.
	store.PutEntry(completedEntry(day.Add(9*time.Hour), day.Add(9*time.Hour+10*time.Minute)))
	store.PutEntry(completedEntry(day.Add(9*time.Hour+30*time.Minute), day.Add(9*time.Hour+45*time.Minute)))

	got := metrics.AverageTimeToConsultationMinutes(context.Background(), day, day.Add(24*time.Hour))
	if got != 12.5 {
		t.Fatalf("average = %v, want 12.5", got)
	}
}

func TestAverageExcludesNonQualifying(t *testing.T) {
	store := NewMemStore()
	metrics := NewMetrics(store)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	store.PutEntry(completedEntry(day.Add(9*time.Hour), day.Add(9*time.Hour+10*time.Minute)))

	// Still waiting: no consultation start, must not count.
	store.PutEntry(WaitingEntry{
		ID: uuid.New(), ClientID: uuid.New(), PetID: uuid.New(),
		ReasonForVisit: "checkup", Priority: PriorityNormal,
		Status: StatusWaiting, ArrivalTime: day.Add(10 * time.Hour),
	})

	// Cancelled after consultation started: not completed, must not count.
	started := day.Add(11*time.Hour + 40*time.Minute)
	ended := started.Add(5 * time.Minute)
	store.PutEntry(WaitingEntry{
		ID: uuid.New(), ClientID: uuid.New(), PetID: uuid.New(),
		ReasonForVisit: "checkup", Priority: PriorityNormal,
		Status: StatusCancelled, ArrivalTime: day.Add(11 * time.Hour),
		ConsultationStartedAt: &started, CompletedAt: &ended,
	})

	// Completed but arrived outside the window.
	store.PutEntry(completedEntry(day.Add(-2*time.Hour), day.Add(-1*time.Hour)))

	got := metrics.AverageTimeToConsultationMinutes(context.Background(), day, day.Add(24*time.Hour))
	if got != 10.0 {
		t.Fatalf("average = %v, want 10.0", got)
	}
}

func TestAverageEmptyWindowIsZero(t *testing.T) {
	store := NewMemStore()
	metrics := NewMetrics(store)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	got := metrics.AverageTimeToConsultationMinutes(context.Background(), day, day.Add(24*time.Hour))
	if got != 0.0 {
		t.Fatalf("average over empty window = %v, want exactly 0.0", got)
	}
}

func TestAverageRounding(t *testing.T) {
	store := NewMemStore()
	metrics := NewMetrics(store)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// 10 minutes and 10 seconds: 10.166... rounds to 10.17.
	store.PutEntry(completedEntry(day.Add(9*time.Hour), day.Add(9*time.Hour+10*time.Minute+10*time.Second)))

	got := metrics.AverageTimeToConsultationMinutes(context.Background(), day, day.Add(24*time.Hour))
	if got != 10.17 {
		t.Fatalf("average = %v, want 10.17", got)
	}
}

// failingStore simulates a persistence outage for the metric paths.
type failingStore struct {
	*MemStore
}

func (s failingStore) FindByArrivalRange(context.Context, time.Time, time.Time) ([]WaitingEntry, error) {
	return nil, errors.New("connection refused")
}

func (s failingStore) CountByStatus(context.Context, Status) (int, error) {
	return 0, errors.New("connection refused")
}

func TestMetricsDegradeOnStoreFailure(t *testing.T) {
	metrics := NewMetrics(failingStore{NewMemStore()})
	ctx := context.Background()

	if got := metrics.CountByStatus(ctx, StatusWaiting); got != 0 {
		t.Fatalf("count on failing store = %d, want 0", got)
	}

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := metrics.AverageTimeToConsultationMinutes(ctx, day, day.Add(24*time.Hour)); got != 0.0 {
		t.Fatalf("average on failing store = %v, want 0.0", got)
	}
}

func TestCountByStatusAndDepth(t *testing.T) {
	store := NewMemStore()
	metrics := NewMetrics(store)
	ctx := context.Background()

	now := time.Now().UTC()
	started := now.Add(-10 * time.Minute)

	store.PutEntry(WaitingEntry{ID: uuid.New(), Status: StatusWaiting, ArrivalTime: now})
	store.PutEntry(WaitingEntry{ID: uuid.New(), Status: StatusWaiting, ArrivalTime: now})
	store.PutEntry(WaitingEntry{ID: uuid.New(), Status: StatusInConsultation, ArrivalTime: now, ConsultationStartedAt: &started})

	if got := metrics.CountByStatus(ctx, StatusWaiting); got != 2 {
		t.Fatalf("waiting count = %d, want 2", got)
	}

	waiting, inConsultation := metrics.Depth(ctx)
	if waiting != 2 || inConsultation != 1 {
		t.Fatalf("depth = (%d, %d), want (2, 1)", waiting, inConsultation)
	}
}
