package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/waiting-room/internal/waitingroom"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleEngineError maps the queue engine's error taxonomy onto HTTP codes.
// Every error is recoverable from the caller's point of view; only the
// default branch is a server fault.
func handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, waitingroom.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client_not_found", err.Error())
	case errors.Is(err, waitingroom.ErrPetNotFound):
		writeError(w, http.StatusNotFound, "pet_not_found", err.Error())
	case errors.Is(err, waitingroom.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", err.Error())
	case errors.Is(err, waitingroom.ErrOwnershipMismatch):
		writeError(w, http.StatusUnprocessableEntity, "ownership_mismatch", err.Error())
	case errors.Is(err, waitingroom.ErrDuplicateActiveVisit):
		writeError(w, http.StatusConflict, "duplicate_active_visit", err.Error())
	case errors.Is(err, waitingroom.ErrAdmissionInProgress):
		writeError(w, http.StatusConflict, "admission_in_progress", "an admission for this client and pet is in progress, please retry shortly")
	case errors.Is(err, waitingroom.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, waitingroom.ErrOperationNotAllowed):
		writeError(w, http.StatusConflict, "operation_not_allowed", err.Error())
	case errors.Is(err, waitingroom.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, waitingroom.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func admitHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
			return
		}

		entry, err := engine.Admit(r.Context(), waitingroom.AdmitInput{
			ClientID:       clientID,
			PetID:          petID,
			ReasonForVisit: req.ReasonForVisit,
			Priority:       waitingroom.Priority(req.Priority),
			Notes:          req.Notes,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toEntryResponse(entry))
	}
}

func getEntryHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		entry, err := engine.Get(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func queueHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := engine.Queue(r.Context())
		if err != nil {
			handleEngineError(w, err)
			return
		}

		resp := make([]EntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, toEntryResponse(&entries[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func startHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		entry, err := engine.Start(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func completeHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		entry, err := engine.Complete(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func cancelHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry, err := engine.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func setPriorityHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		var req PriorityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry, err := engine.SetPriority(r.Context(), id, waitingroom.Priority(req.Priority))
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func appendNoteHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		var req NoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry, err := engine.AppendNote(r.Context(), id, req.Text)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func deleteEntryHandler(engine *waitingroom.Authorized) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryIDParam(w, r)
		if !ok {
			return
		}

		if err := engine.Delete(r.Context(), id); err != nil {
			handleEngineError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func statusCountsHandler(metrics *waitingroom.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusCountsResponse{
			Waiting:        metrics.CountByStatus(r.Context(), waitingroom.StatusWaiting),
			InConsultation: metrics.CountByStatus(r.Context(), waitingroom.StatusInConsultation),
			Completed:      metrics.CountByStatus(r.Context(), waitingroom.StatusCompleted),
			Cancelled:      metrics.CountByStatus(r.Context(), waitingroom.StatusCancelled),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func averageWaitHandler(metrics *waitingroom.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Defaults to today when no window is given.
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		to := from.Add(24 * time.Hour)

		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_window", "from must be RFC3339")
				return
			}
			from = t
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_window", "to must be RFC3339")
				return
			}
			to = t
		}

		resp := AverageWaitResponse{
			WindowStart:                      from,
			WindowEnd:                        to,
			AverageTimeToConsultationMinutes: metrics.AverageTimeToConsultationMinutes(r.Context(), from, to),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func searchHandler(search *waitingroom.Search) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePage(r.URL.Query().Get("page"))

		result, err := search.ByTerm(r.Context(), r.URL.Query().Get("q"), page)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPageResponse(result))
	}
}

func historyHandler(search *waitingroom.Search) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day := time.Now().UTC()
		if v := r.URL.Query().Get("date"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			day = t
		}

		page := parsePage(r.URL.Query().Get("page"))

		result, err := search.HistoryForDay(r.Context(), day, page)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPageResponse(result))
	}
}

func parsePage(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
