// Package farmapi provides the HTTP client for the upstream farm
// request-management API, the authoritative store for all service requests.
package farmapi

// SourceKind identifies one of the upstream record collections.
type SourceKind string

const (
	SourceHarvest  SourceKind = "harvest"
	SourceProperty SourceKind = "property_evaluation"
	SourcePest     SourceKind = "pest_management"
	SourceRegular  SourceKind = "regular"
)

// AllSources lists every source kind in stable aggregation order.
var AllSources = []SourceKind{SourceHarvest, SourceProperty, SourcePest, SourceRegular}

// RawFarmerProfile is the structured farmer object newer upstream records
// carry. Older records only have the flat farmerName/farmerPhone fields.
type RawFarmerProfile struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// RawLocation carries the administrative levels of the farm.
type RawLocation struct {
	FarmName string `json:"farmName"`
	Village  string `json:"village"`
	Cell     string `json:"cell"`
	Sector   string `json:"sector"`
	District string `json:"district"`
	Province string `json:"province"`
	City     string `json:"city"`
}

// RawHistoryEntry is one upstream status history element.
type RawHistoryEntry struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Note      string `json:"note"`
}

// RawRequestCore holds the fields shared by every source shape.
type RawRequestCore struct {
	ID             string            `json:"id"`
	RequestNumber  string            `json:"requestNumber"`
	Status         string            `json:"status"`
	Priority       string            `json:"priority"`
	Farmer         *RawFarmerProfile `json:"farmer,omitempty"`
	FarmerID       string            `json:"farmerId"`
	FarmerName     string            `json:"farmerName"`
	FarmerPhone    string            `json:"farmerPhone"`
	FarmerEmail    string            `json:"farmerEmail"`
	Location       *RawLocation      `json:"location,omitempty"`
	SubmittedAt    string            `json:"submittedAt"`
	UpdatedAt      string            `json:"updatedAt"`
	RescheduleDate string            `json:"rescheduleDate,omitempty"`
	StatusHistory  []RawHistoryEntry `json:"statusHistory,omitempty"`
}

// RawHarvestRequest is the harvest-scheduling source shape.
type RawHarvestRequest struct {
	RawRequestCore
	WorkersNeeded   int    `json:"workersNeeded"`
	EquipmentNeeded string `json:"equipmentNeeded"`
	TreesToHarvest  int    `json:"treesToHarvest"`
	HarvestDateFrom string `json:"harvestDateFrom"`
	HarvestDateTo   string `json:"harvestDateTo"`
}

// RawPropertyRequest is the property-evaluation source shape.
type RawPropertyRequest struct {
	RawRequestCore
	IrrigationAvailable bool   `json:"irrigationAvailable"`
	SoilType            string `json:"soilType"`
	VisitWindowStart    string `json:"visitWindowStart"`
	VisitWindowEnd      string `json:"visitWindowEnd"`
}

// RawPestRequest is the pest-management source shape.
type RawPestRequest struct {
	RawRequestCore
	PestType        string `json:"pestType"`
	Severity        string `json:"severity"`
	TreatmentMethod string `json:"treatmentMethod"`
}

// RawRegularRequest is the generic source shape. Unlike the single-type
// sources, the service type must be read off the record itself.
type RawRegularRequest struct {
	RawRequestCore
	ServiceType string         `json:"service_type"`
	LegacyType  string         `json:"type"`
	Details     map[string]any `json:"details,omitempty"`
}

// ListFilters narrows a per-source list call.
type ListFilters struct {
	Status string
}

// ApprovePayload carries optional approval notes.
type ApprovePayload struct {
	Notes string `json:"notes,omitempty"`
}

// RejectPayload carries the mandatory rejection reason.
type RejectPayload struct {
	Reason string `json:"reason"`
}

// StartPayload carries optional start notes. Start applies to harvest and
// pest-management requests only.
type StartPayload struct {
	Notes string `json:"notes,omitempty"`
}

// CompletePayload carries optional completion notes and, for pest
// treatments, an effectiveness assessment.
type CompletePayload struct {
	Notes         string `json:"notes,omitempty"`
	Effectiveness string `json:"effectiveness,omitempty"`
}

// ReschedulePayload carries the mandatory new date and reason.
type ReschedulePayload struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// UpdateStatusPayload is the generic status fallback for the regular source.
type UpdateStatusPayload struct {
	Status         string `json:"status"`
	RescheduleDate string `json:"rescheduleDate,omitempty"`
}
