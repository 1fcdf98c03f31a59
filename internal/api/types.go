package api

import (
	"time"

	"github.com/vetdesk/waiting-room/internal/waitingroom"
)

type AdmitRequest struct {
	ClientID       string `json:"client_id"`
	PetID          string `json:"pet_id"`
	ReasonForVisit string `json:"reason_for_visit"`
	Priority       string `json:"priority,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type PriorityRequest struct {
	Priority string `json:"priority"`
}

type NoteRequest struct {
	Text string `json:"text"`
}

type EntryResponse struct {
	ID                    string     `json:"id"`
	ClientID              string     `json:"client_id"`
	PetID                 string     `json:"pet_id"`
	ReasonForVisit        string     `json:"reason_for_visit"`
	Priority              string     `json:"priority"`
	Status                string     `json:"status"`
	ArrivalTime           time.Time  `json:"arrival_time"`
	ConsultationStartedAt *time.Time `json:"consultation_started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
}

type EntryViewResponse struct {
	EntryResponse
	ClientName string `json:"client_name"`
	PetName    string `json:"pet_name"`
}

type PageResponse struct {
	Items    []EntryViewResponse `json:"items"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Total    int                 `json:"total"`
}

type StatusCountsResponse struct {
	Waiting        int `json:"waiting"`
	InConsultation int `json:"in_consultation"`
	Completed      int `json:"completed"`
	Cancelled      int `json:"cancelled"`
}

type AverageWaitResponse struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	// Minutes from arrival to the start of consultation, not total visit
	// duration.
	AverageTimeToConsultationMinutes float64 `json:"average_time_to_consultation_minutes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toEntryResponse(e *waitingroom.WaitingEntry) EntryResponse {
	return EntryResponse{
		ID:                    e.ID.String(),
		ClientID:              e.ClientID.String(),
		PetID:                 e.PetID.String(),
		ReasonForVisit:        e.ReasonForVisit,
		Priority:              string(e.Priority),
		Status:                string(e.Status),
		ArrivalTime:           e.ArrivalTime,
		ConsultationStartedAt: e.ConsultationStartedAt,
		CompletedAt:           e.CompletedAt,
		Notes:                 e.Notes,
	}
}

func toPageResponse(p *waitingroom.EntryPage) PageResponse {
	items := make([]EntryViewResponse, 0, len(p.Items))
	for i := range p.Items {
		v := p.Items[i]
		items = append(items, EntryViewResponse{
			EntryResponse: toEntryResponse(&v.WaitingEntry),
			ClientName:    v.ClientName,
			PetName:       v.PetName,
		})
	}
	return PageResponse{
		Items:    items,
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    p.Total,
	}
}
