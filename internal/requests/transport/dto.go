// Package transport defines the wire-level request and response shapes for
// the requests module.
package transport

import (
	"time"

	"farmlink_backend/internal/requests/domain"
)

// ApproveRequest carries optional reviewer notes.
type ApproveRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

// RejectRequest always carries the reason shown to the farmer.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// CompleteRequest carries optional completion details.
type CompleteRequest struct {
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
	Effectiveness string `json:"effectiveness" validate:"omitempty,oneof=low moderate high"`
}

// RescheduleRequest moves the work to a new date.
type RescheduleRequest struct {
	Date   string `json:"date" validate:"required"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

// HistoryEntryResponse is one audit-trail element.
type HistoryEntryResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// RequestResponse is the canonical request as served to clients.
type RequestResponse struct {
	ID             string                 `json:"id"`
	RequestNumber  string                 `json:"requestNumber"`
	ServiceType    string                 `json:"serviceType"`
	ServiceLabel   string                 `json:"serviceLabel"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	FarmerID       string                 `json:"farmerId"`
	FarmerName     string                 `json:"farmerName"`
	FarmerPhone    string                 `json:"farmerPhone"`
	FarmerEmail    string                 `json:"farmerEmail"`
	FarmerLocation string                 `json:"farmerLocation"`
	SubmittedAt    time.Time              `json:"submittedAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	RescheduleDate *string                `json:"rescheduleDate,omitempty"`
	StatusHistory  []HistoryEntryResponse `json:"statusHistory"`
	TypeDetails    map[string]any         `json:"typeDetails,omitempty"`
}

// ListResponse wraps a filtered listing with snapshot metadata.
type ListResponse struct {
	Requests     []RequestResponse `json:"requests"`
	Total        int               `json:"total"`
	FetchedAt    time.Time         `json:"fetchedAt"`
	SourceErrors map[string]string `json:"sourceErrors,omitempty"`
}

// FromDomain maps a canonical record onto the response shape.
func FromDomain(rec domain.ServiceRequest) RequestResponse {
	resp := RequestResponse{
		ID:             rec.ID,
		RequestNumber:  rec.RequestNumber,
		ServiceType:    string(rec.ServiceType),
		ServiceLabel:   rec.ServiceType.Label(),
		Status:         string(rec.Status),
		Priority:       string(rec.Priority),
		FarmerID:       rec.Farmer.ID,
		FarmerName:     rec.Farmer.Name,
		FarmerPhone:    rec.Farmer.Phone,
		FarmerEmail:    rec.Farmer.Email,
		FarmerLocation: rec.Farmer.Location,
		SubmittedAt:    rec.SubmittedAt,
		UpdatedAt:      rec.UpdatedAt,
		TypeDetails:    rec.TypeDetails,
	}
	if rec.RescheduleDate != nil {
		d := rec.RescheduleDate.Format("2006-01-02")
		resp.RescheduleDate = &d
	}
	resp.StatusHistory = make([]HistoryEntryResponse, 0, len(rec.StatusHistory))
	for _, e := range rec.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, HistoryEntryResponse{
			Status:    string(e.Status),
			Timestamp: e.Timestamp,
			Note:      e.Note,
		})
	}
	return resp
}

// FromDomainList maps a slice of canonical records.
func FromDomainList(recs []domain.ServiceRequest) []RequestResponse {
	out := make([]RequestResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromDomain(rec))
	}
	return out
}
