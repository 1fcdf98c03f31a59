package waitingroom

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedSearchStore() *MemStore {
	store := NewMemStore()

	client1 := Client{ID: uuid.New(), Name: "Marisol Vega"}
	pet1 := Pet{ID: uuid.New(), ClientID: client1.ID, Name: "Bruno", Species: "dog"}
	client2 := Client{ID: uuid.New(), Name: "Tomas Brunner"}
	pet2 := Pet{ID: uuid.New(), ClientID: client2.ID, Name: "Willow", Species: "cat"}

	store.AddClient(client1)
	store.AddClient(client2)
	store.AddPet(pet1)
	store.AddPet(pet2)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	store.PutEntry(WaitingEntry{
		ID: uuid.New(), ClientID: client1.ID, PetID: pet1.ID,
		ReasonForVisit: "vaccination booster", Priority: PriorityNormal,
		Status: StatusWaiting, ArrivalTime: day.Add(9 * time.Hour),
	})
	store.PutEntry(WaitingEntry{
		ID: uuid.New(), ClientID: client2.ID, PetID: pet2.ID,
		ReasonForVisit: "limping", Priority: PriorityUrgent,
		Status: StatusCancelled, ArrivalTime: day.Add(10 * time.Hour),
	})
	store.PutEntry(WaitingEntry{
		ID: uuid.New(), ClientID: client2.ID, PetID: pet2.ID,
		ReasonForVisit: "checkup", Priority: PriorityNormal,
		Status: StatusWaiting, ArrivalTime: day.AddDate(0, 0, 1).Add(8 * time.Hour),
	})

	return store
}

func TestSearchByTerm(t *testing.T) {
	search := NewSearch(seedSearchStore(), 10)
	ctx := context.Background()

	cases := []struct {
		term string
		want int
	}{
		{"bruno", 1},    // pet name, case-insensitive
		{"BRUN", 2},     // matches pet Bruno and client Brunner
		{"vega", 1},     // client name
		{"limping", 1},  // reason
		{"", 3},         // empty term matches all
		{"platypus", 0}, // no match
	}

	for _, tt := range cases {
		page, err := search.ByTerm(ctx, tt.term, 1)
		if err != nil {
			t.Fatalf("search %q: %v", tt.term, err)
		}
		if page.Total != tt.want {
			t.Fatalf("search %q: total = %d, want %d", tt.term, page.Total, tt.want)
		}
	}
}

func TestSearchJoinsNames(t *testing.T) {
	search := NewSearch(seedSearchStore(), 10)

	page, err := search.ByTerm(context.Background(), "vega", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
	if page.Items[0].ClientName != "Marisol Vega" || page.Items[0].PetName != "Bruno" {
		t.Fatalf("names not joined: %+v", page.Items[0])
	}
}

func TestSearchPagination(t *testing.T) {
	search := NewSearch(seedSearchStore(), 2)
	ctx := context.Background()

	first, err := search.ByTerm(ctx, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Items) != 2 || first.Total != 3 {
		t.Fatalf("page 1: items=%d total=%d, want 2/3", len(first.Items), first.Total)
	}

	second, err := search.ByTerm(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Items) != 1 || second.Page != 2 {
		t.Fatalf("page 2: items=%d page=%d, want 1/2", len(second.Items), second.Page)
	}

	empty, err := search.ByTerm(ctx, "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Items) != 0 || empty.Total != 3 {
		t.Fatalf("page past the end must be empty with total intact, got %+v", empty)
	}
}

func TestHistoryForDay(t *testing.T) {
	search := NewSearch(seedSearchStore(), 10)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	// Both the waiting and the cancelled entry arrived on the 10th; the
	// entry from the 11th is out.
	page, err := search.HistoryForDay(ctx, day, 1)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("history total = %d, want 2", page.Total)
	}

	next, err := search.HistoryForDay(ctx, day.AddDate(0, 0, 1), 1)
	if err != nil {
		t.Fatal(err)
	}
	if next.Total != 1 {
		t.Fatalf("next-day history total = %d, want 1", next.Total)
	}

	// A time-of-day on the query date is irrelevant; the whole day counts.
	late, err := search.HistoryForDay(ctx, day.Add(23*time.Hour+59*time.Minute), 1)
	if err != nil {
		t.Fatal(err)
	}
	if late.Total != 2 {
		t.Fatalf("history with late query time = %d, want 2", late.Total)
	}
}
