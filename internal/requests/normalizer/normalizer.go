// Package normalizer converts the four upstream record shapes into the
// canonical ServiceRequest model. Normalization is a pure function of its
// input: no hidden state, stable output order for equal input.
package normalizer

import (
	"fmt"
	"time"

	"farmlink_backend/internal/farmapi"
	"farmlink_backend/internal/requests/domain"
	"farmlink_backend/platform/coerce"
	"farmlink_backend/platform/phone"
)

// Result carries the canonical batch plus a count of records that required
// best-effort defaults. A malformed record is never dropped; callers can
// compare Malformed against len(Records) to detect degraded input.
type Result struct {
	Records   []domain.ServiceRequest
	Malformed int
}

// HarvestBatch normalizes harvest-scheduling source records.
func HarvestBatch(raws []farmapi.RawHarvestRequest) Result {
	var res Result
	res.Records = make([]domain.ServiceRequest, 0, len(raws))
	for i, raw := range raws {
		rec := normalizeCore(raw.RawRequestCore, domain.TypeHarvest, i, &res.Malformed)
		rec.TypeDetails = map[string]any{
			"workersNeeded":   raw.WorkersNeeded,
			"equipmentNeeded": coerce.NA(raw.EquipmentNeeded),
			"treesToHarvest":  raw.TreesToHarvest,
			"harvestDateFrom": raw.HarvestDateFrom,
			"harvestDateTo":   raw.HarvestDateTo,
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// PropertyBatch normalizes property-evaluation source records.
func PropertyBatch(raws []farmapi.RawPropertyRequest) Result {
	var res Result
	res.Records = make([]domain.ServiceRequest, 0, len(raws))
	for i, raw := range raws {
		rec := normalizeCore(raw.RawRequestCore, domain.TypePropertyEvaluation, i, &res.Malformed)
		rec.TypeDetails = map[string]any{
			"irrigationAvailable": raw.IrrigationAvailable,
			"soilType":            coerce.NA(raw.SoilType),
			"visitWindowStart":    raw.VisitWindowStart,
			"visitWindowEnd":      raw.VisitWindowEnd,
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// PestBatch normalizes pest-management source records.
func PestBatch(raws []farmapi.RawPestRequest) Result {
	var res Result
	res.Records = make([]domain.ServiceRequest, 0, len(raws))
	for i, raw := range raws {
		rec := normalizeCore(raw.RawRequestCore, domain.TypePestManagement, i, &res.Malformed)
		rec.TypeDetails = map[string]any{
			"pestType":        coerce.NA(raw.PestType),
			"severity":        coerce.NA(raw.Severity),
			"treatmentMethod": coerce.NA(raw.TreatmentMethod),
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// RegularBatch normalizes generic source records. The service type is read
// off the record itself, preferring service_type over the legacy type
// field, collapsing to unknown when neither is present.
func RegularBatch(raws []farmapi.RawRegularRequest) Result {
	var res Result
	res.Records = make([]domain.ServiceRequest, 0, len(raws))
	for i, raw := range raws {
		svcType := domain.ParseServiceType(coerce.First(raw.ServiceType, raw.LegacyType))
		rec := normalizeCore(raw.RawRequestCore, svcType, i, &res.Malformed)
		if len(raw.Details) > 0 {
			// Opaque pass-through: the engine never interprets these.
			rec.TypeDetails = raw.Details
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

func normalizeCore(core farmapi.RawRequestCore, svcType domain.ServiceType, idx int, malformed *int) domain.ServiceRequest {
	id := coerce.First(core.ID, core.RequestNumber)
	if id == "" {
		// Keep the record rather than dropping it, but make the
		// degradation observable through the Malformed count.
		id = fmt.Sprintf("unrecorded-%s-%d", svcType, idx)
		*malformed++
	}

	var nested farmapi.RawFarmerProfile
	if core.Farmer != nil {
		nested = *core.Farmer
	}

	status := domain.ParseStatus(core.Status)

	submittedAt, ok := parseTime(core.SubmittedAt)
	if !ok {
		submittedAt = time.Time{}
	}
	updatedAt, ok := parseTime(core.UpdatedAt)
	if !ok {
		updatedAt = submittedAt
	}

	rec := domain.ServiceRequest{
		ID:            id,
		RequestNumber: coerce.First(core.RequestNumber, id),
		ServiceType:   svcType,
		Status:        status,
		Priority:      domain.ParsePriority(core.Priority),
		Farmer: domain.Farmer{
			ID:       coerce.First(nested.ID, core.FarmerID),
			Name:     coerce.Unknown(nested.FullName, core.FarmerName),
			Phone:    coerce.NA(phone.NormalizeE164(coerce.First(nested.Phone, core.FarmerPhone))),
			Email:    coerce.NA(nested.Email, core.FarmerEmail),
			Location: FormatLocation(core.Location),
		},
		SubmittedAt:   submittedAt,
		UpdatedAt:     updatedAt,
		StatusHistory: normalizeHistory(core.StatusHistory, submittedAt),
	}

	// The reschedule date is only authoritative while the record is
	// actually postponed.
	if status == domain.StatusPostponed {
		if d, ok := parseTime(core.RescheduleDate); ok {
			rec.RescheduleDate = &d
		}
	}

	return rec
}

func normalizeHistory(raw []farmapi.RawHistoryEntry, submittedAt time.Time) []domain.HistoryEntry {
	if len(raw) == 0 {
		return []domain.HistoryEntry{{
			Status:    domain.StatusPending,
			Timestamp: submittedAt,
			Note:      "Request submitted",
		}}
	}

	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, e := range raw {
		ts, _ := parseTime(e.Timestamp)
		out = append(out, domain.HistoryEntry{
			Status:    domain.ParseStatus(e.Status),
			Timestamp: ts,
			Note:      e.Note,
		})
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
