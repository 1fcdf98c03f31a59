package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/waiting-room/internal/waitingroom"
)

type testEnv struct {
	router   http.Handler
	store    *waitingroom.MemStore
	clientID uuid.UUID
	petID    uuid.UUID
}

func newTestEnv() *testEnv {
	store := waitingroom.NewMemStore()

	clientID := uuid.New()
	petID := uuid.New()
	store.AddClient(waitingroom.Client{ID: clientID, Name: "Priya Nair"})
	store.AddPet(waitingroom.Pet{ID: petID, ClientID: clientID, Name: "Pickle", Species: "dog"})

	svc := waitingroom.NewService(store, store, waitingroom.NewPairMutexLocker(), waitingroom.NopNotifier{})

	// Health endpoints are not exercised here, so the pg and redis handles
	// stay nil.
	r := NewRouter(RouterConfig{
		Engine:  waitingroom.NewAuthorized(svc),
		Metrics: waitingroom.NewMetrics(store),
		Search:  waitingroom.NewSearch(store, 20),
	})

	return &testEnv{router: r, store: store, clientID: clientID, petID: petID}
}

func (e *testEnv) do(t *testing.T, method, path, roles string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if roles != "" {
		req.Header.Set("X-Roles", roles)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) admit(t *testing.T) EntryResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/entries", "receptionist", AdmitRequest{
		ClientID:       e.clientID.String(),
		PetID:          e.petID.String(),
		ReasonForVisit: "checkup",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admit status = %d, body %s", rec.Code, rec.Body.String())
	}

	var entry EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode admit response: %v", err)
	}
	return entry
}

func TestAdmitEndpoint(t *testing.T) {
	env := newTestEnv()

	entry := env.admit(t)
	if entry.Status != "waiting" || entry.Priority != "normal" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// Duplicate admission conflicts.
	rec := env.do(t, http.MethodPost, "/entries", "receptionist", AdmitRequest{
		ClientID:       env.clientID.String(),
		PetID:          env.petID.String(),
		ReasonForVisit: "again",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate admit status = %d, want 409", rec.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error != "duplicate_active_visit" {
		t.Fatalf("error code = %q, want duplicate_active_visit", errResp.Error)
	}
}

func TestAdmitEndpointValidation(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name     string
		body     AdmitRequest
		wantCode int
		wantErr  string
	}{
		{
			name:     "bad client uuid",
			body:     AdmitRequest{ClientID: "nope", PetID: env.petID.String(), ReasonForVisit: "x"},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_client_id",
		},
		{
			name:     "unknown client",
			body:     AdmitRequest{ClientID: uuid.NewString(), PetID: env.petID.String(), ReasonForVisit: "x"},
			wantCode: http.StatusNotFound,
			wantErr:  "client_not_found",
		},
		{
			name:     "missing reason",
			body:     AdmitRequest{ClientID: env.clientID.String(), PetID: env.petID.String()},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_argument",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/entries", "receptionist", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			var errResp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
				t.Fatal(err)
			}
			if errResp.Error != tt.wantErr {
				t.Fatalf("error code = %q, want %q", errResp.Error, tt.wantErr)
			}
		})
	}
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv()
	entry := env.admit(t)

	// A receptionist cannot start a consultation.
	rec := env.do(t, http.MethodPost, "/entries/"+entry.ID+"/start", "receptionist", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("receptionist start status = %d, want 403", rec.Code)
	}

	// A vet can.
	rec = env.do(t, http.MethodPost, "/entries/"+entry.ID+"/start", "vet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vet start status = %d, body %s", rec.Code, rec.Body.String())
	}

	// No role at all cannot even read.
	rec = env.do(t, http.MethodGet, "/queue", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous queue status = %d, want 403", rec.Code)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	env := newTestEnv()
	entry := env.admit(t)

	rec := env.do(t, http.MethodPost, "/entries/"+entry.ID+"/start", "vet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	var started EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatal(err)
	}
	if started.Status != "in_consultation" || started.ConsultationStartedAt == nil {
		t.Fatalf("unexpected started entry: %+v", started)
	}

	// Delete is blocked mid-consultation.
	rec = env.do(t, http.MethodDelete, "/entries/"+entry.ID, "admin", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete during consultation status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/entries/"+entry.ID+"/complete", "vet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/entries/"+entry.ID, "admin", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete after completion status = %d, want 204", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/entries/"+entry.ID, "vet", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestQueueEndpointOrdering(t *testing.T) {
	env := newTestEnv()

	// A second client whose cat arrives later but as an emergency.
	otherClient := uuid.New()
	otherPet := uuid.New()
	env.store.AddClient(waitingroom.Client{ID: otherClient, Name: "Sam Okafor"})
	env.store.AddPet(waitingroom.Pet{ID: otherPet, ClientID: otherClient, Name: "Zuko", Species: "cat"})

	first := env.admit(t)

	rec := env.do(t, http.MethodPost, "/entries", "receptionist", AdmitRequest{
		ClientID:       otherClient.String(),
		PetID:          otherPet.String(),
		ReasonForVisit: "seizure",
		Priority:       "emergency",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("emergency admit status = %d", rec.Code)
	}
	var emergency EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &emergency); err != nil {
		t.Fatal(err)
	}

	rec = env.do(t, http.MethodGet, "/queue", "vet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue status = %d", rec.Code)
	}
	var queue []EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &queue); err != nil {
		t.Fatal(err)
	}
	if len(queue) != 2 || queue[0].ID != emergency.ID || queue[1].ID != first.ID {
		t.Fatalf("queue order wrong: %+v", queue)
	}

	// Raising the first entry's priority reorders the next read.
	rec = env.do(t, http.MethodPatch, "/entries/"+first.ID+"/priority", "receptionist", PriorityRequest{Priority: "emergency"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set priority status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/queue", "vet", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &queue); err != nil {
		t.Fatal(err)
	}
	if queue[0].ID != first.ID {
		t.Fatal("earlier arrival must lead within the same priority band")
	}
}

func TestNotesEndpoint(t *testing.T) {
	env := newTestEnv()
	entry := env.admit(t)

	rec := env.do(t, http.MethodPost, "/entries/"+entry.ID+"/notes", "vet", NoteRequest{Text: "ate a sock"})
	if rec.Code != http.StatusOK {
		t.Fatalf("append note status = %d", rec.Code)
	}
	var updated EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Notes == "" {
		t.Fatal("notes must contain the appended line")
	}
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	consultStart := day.Add(9*time.Hour + 20*time.Minute)
	completed := consultStart.Add(10 * time.Minute)
	env.store.PutEntry(waitingroom.WaitingEntry{
		ID: uuid.New(), ClientID: env.clientID, PetID: env.petID,
		ReasonForVisit: "dental", Priority: waitingroom.PriorityNormal,
		Status: waitingroom.StatusCompleted, ArrivalTime: day.Add(9 * time.Hour),
		ConsultationStartedAt: &consultStart, CompletedAt: &completed,
	})

	env.admit(t)

	rec := env.do(t, http.MethodGet, "/metrics/status-counts", "vet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status counts status = %d", rec.Code)
	}
	var counts StatusCountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatal(err)
	}
	if counts.Waiting != 1 || counts.Completed != 1 {
		t.Fatalf("counts = %+v, want waiting=1 completed=1", counts)
	}

	url := fmt.Sprintf("/metrics/average-wait?from=%s&to=%s",
		day.Format(time.RFC3339), day.Add(24*time.Hour).Format(time.RFC3339))
	rec = env.do(t, http.MethodGet, url, "vet", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("average wait status = %d", rec.Code)
	}
	var avg AverageWaitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &avg); err != nil {
		t.Fatal(err)
	}
	if avg.AverageTimeToConsultationMinutes != 20.0 {
		t.Fatalf("average = %v, want 20.0", avg.AverageTimeToConsultationMinutes)
	}
}

func TestSearchAndHistoryEndpoints(t *testing.T) {
	env := newTestEnv()
	env.admit(t)

	rec := env.do(t, http.MethodGet, "/search?q=pickle", "receptionist", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var page PageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].PetName != "Pickle" {
		t.Fatalf("search result = %+v", page)
	}

	today := time.Now().UTC().Format("2006-01-02")
	rec = env.do(t, http.MethodGet, "/history?date="+today, "receptionist", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("history total = %d, want 1", page.Total)
	}
}
