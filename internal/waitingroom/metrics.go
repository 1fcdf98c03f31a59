package waitingroom

import (
	"context"
	"log"
	"math"
	"time"
)

// Metrics derives operational numbers for the waiting-room dashboard.
//
// Every method degrades to a zero value on a store failure instead of
// returning an error: a broken dashboard number must never take the
// dashboard down with it. The failure is logged.
type Metrics struct {
	store EntryStore
}

func NewMetrics(store EntryStore) *Metrics {
	return &Metrics{store: store}
}

func (m *Metrics) CountByStatus(ctx context.Context, status Status) int {
	n, err := m.store.CountByStatus(ctx, status)
	if err != nil {
		log.Printf("metrics: count by status %s failed: %v", status, err)
		return 0
	}
	return n
}

// Depth reports the current queue depth split into waiting and
// in-consultation entries.
func (m *Metrics) Depth(ctx context.Context) (waiting, inConsultation int) {
	return m.CountByStatus(ctx, StatusWaiting), m.CountByStatus(ctx, StatusInConsultation)
}

// AverageTimeToConsultationMinutes is the mean time entries arriving inside
// [from, to) spent between arrival and the start of their consultation,
// rounded to two decimals.
//
// This is time-to-consultation, not total visit duration: only completed
// entries with a recorded consultation start qualify, and the completion
// time plays no part in the number. Zero when nothing qualifies.
func (m *Metrics) AverageTimeToConsultationMinutes(ctx context.Context, from, to time.Time) float64 {
	entries, err := m.store.FindByArrivalRange(ctx, from, to)
	if err != nil {
		log.Printf("metrics: average wait over [%s, %s) failed: %v", from, to, err)
		return 0.0
	}

	var total time.Duration
	var count int
	for _, e := range entries {
		if e.Status != StatusCompleted || e.ConsultationStartedAt == nil {
			continue
		}
		total += e.ConsultationStartedAt.Sub(e.ArrivalTime)
		count++
	}

	if count == 0 {
		return 0.0
	}

	mean := total.Minutes() / float64(count)
	return math.Round(mean*100) / 100
}
