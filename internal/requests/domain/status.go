package domain

import "strings"

// ServiceType identifies which offering a request belongs to. Exactly one
// type per record; a record is never reinterpreted as a different type.
type ServiceType string

const (
	TypeHarvest            ServiceType = "harvest"
	TypePropertyEvaluation ServiceType = "property_evaluation"
	TypePestManagement     ServiceType = "pest_management"
	TypeUnknown            ServiceType = "unknown"
)

// ParseServiceType maps upstream type spellings onto the canonical enum.
// Unrecognized values collapse to TypeUnknown.
func ParseServiceType(raw string) ServiceType {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	switch normalized {
	case "harvest", "harvest_scheduling", "harvest_day":
		return TypeHarvest
	case "property_evaluation", "property", "evaluation":
		return TypePropertyEvaluation
	case "pest_management", "pest", "pest_control", "anti_erosion":
		return TypePestManagement
	default:
		return TypeUnknown
	}
}

// Label returns the human-readable service type label used in notification
// messages and free-text search.
func (t ServiceType) Label() string {
	switch t {
	case TypeHarvest:
		return "Harvest"
	case TypePropertyEvaluation:
		return "Property Evaluation"
	case TypePestManagement:
		return "Pest Management"
	default:
		return "Unknown"
	}
}

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusPostponed  Status = "postponed"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus maps upstream status spellings onto the canonical enum.
// Records always start life as pending, so that is also the fallback.
func ParseStatus(raw string) Status {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	switch normalized {
	case "approved", "accepted":
		return StatusApproved
	case "in_progress", "inprogress", "started", "ongoing":
		return StatusInProgress
	case "postponed", "rescheduled":
		return StatusPostponed
	case "completed", "done", "finished":
		return StatusCompleted
	case "rejected", "declined":
		return StatusRejected
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusPending
	}
}

// IsTerminal reports whether the status admits no outgoing transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Priority is the urgency assigned to a request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps upstream priority spellings onto the canonical enum,
// defaulting to medium when absent or unrecognized.
func ParsePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent", "critical":
		return PriorityUrgent
	default:
		return PriorityMedium
	}
}
