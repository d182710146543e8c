// Package domain provides core business rules for the service-request
// bounded context: the canonical record shape and the status transition
// table shared by the engine, the aggregator, and the normalizer.
package domain

import "time"

// Farmer is a denormalized snapshot of the requesting farmer, captured at
// read time. It is display data, not authoritative, and is refreshed on
// every fetch.
type Farmer struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Location string `json:"location"`
}

// HistoryEntry is one element of the append-only status history.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// ServiceRequest is the canonical shape for a service request regardless of
// originating source. Records are created upstream in state pending and
// mutated exclusively through the transition engine.
type ServiceRequest struct {
	ID            string         `json:"id"`
	RequestNumber string         `json:"requestNumber"`
	ServiceType   ServiceType    `json:"serviceType"`
	Status        Status         `json:"status"`
	Priority      Priority       `json:"priority"`
	Farmer        Farmer         `json:"farmer"`
	SubmittedAt   time.Time      `json:"submittedAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	// RescheduleDate is set only while the record is postponed.
	RescheduleDate *time.Time     `json:"rescheduleDate,omitempty"`
	StatusHistory  []HistoryEntry `json:"statusHistory"`
	// TypeDetails carries the per-type variant payload. Fields beyond the
	// canonical set are opaque pass-through data, never interpreted here.
	TypeDetails map[string]any `json:"typeDetails,omitempty"`
}

// AppendHistory adds one entry to the status history. History is
// append-only: entries are never mutated or reordered.
func (r *ServiceRequest) AppendHistory(status Status, at time.Time, note string) {
	r.StatusHistory = append(r.StatusHistory, HistoryEntry{
		Status:    status,
		Timestamp: at,
		Note:      note,
	})
}

// Clone returns a deep copy of the record so snapshot consumers can never
// mutate shared state.
func (r ServiceRequest) Clone() ServiceRequest {
	out := r
	if r.StatusHistory != nil {
		out.StatusHistory = make([]HistoryEntry, len(r.StatusHistory))
		copy(out.StatusHistory, r.StatusHistory)
	}
	if r.TypeDetails != nil {
		out.TypeDetails = make(map[string]any, len(r.TypeDetails))
		for k, v := range r.TypeDetails {
			out.TypeDetails[k] = v
		}
	}
	if r.RescheduleDate != nil {
		d := *r.RescheduleDate
		out.RescheduleDate = &d
	}
	return out
}
