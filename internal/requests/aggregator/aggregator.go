// Package aggregator fans out to the upstream sources, normalizes their
// records and serves a merged in-memory snapshot. The upstream store stays
// authoritative: the snapshot is a cache that is replaced wholesale on
// every refresh, never patched incrementally from partial fetches.
package aggregator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/farmapi"
	"farmlink_backend/internal/requests/domain"
	"farmlink_backend/internal/requests/normalizer"
	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Snapshot is one consistent view of the merged sources.
type Snapshot struct {
	Records      []domain.ServiceRequest
	FetchedAt    time.Time
	SourceErrors map[farmapi.SourceKind]string
	Malformed    int
}

// Summary holds derived counts over the current snapshot. Counts are
// recomputed on demand, never stored alongside the records.
type Summary struct {
	Total     int                        `json:"total"`
	ByStatus  map[domain.Status]int      `json:"byStatus"`
	ByType    map[domain.ServiceType]int `json:"byType"`
	Malformed int                        `json:"malformed"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

// Filter narrows a snapshot listing. Zero values mean "no constraint";
// all set constraints must hold for a record to pass.
type Filter struct {
	Status string
	Type   string
	Query  string
}

// SortSpec orders a snapshot listing.
type SortSpec struct {
	Key  string
	Desc bool
}

// Aggregator owns the snapshot and the refresh cycle.
type Aggregator struct {
	client farmapi.Client
	bus    events.Bus
	log    *logger.Logger

	mu   sync.RWMutex
	snap Snapshot
}

func New(client farmapi.Client, bus events.Bus, log *logger.Logger) *Aggregator {
	return &Aggregator{client: client, bus: bus, log: log}
}

// Refresh fetches all sources concurrently, normalizes whatever arrived
// and swaps the snapshot. A failed source contributes no records and is
// reported in SourceErrors; only when every source fails is the previous
// snapshot kept and an error returned.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	const op = "aggregator.Refresh"

	var (
		harvest  normalizer.Result
		property normalizer.Result
		pest     normalizer.Result
		regular  normalizer.Result

		errMu      sync.Mutex
		sourceErrs = map[farmapi.SourceKind]string{}
	)

	record := func(kind farmapi.SourceKind, err error) {
		errMu.Lock()
		sourceErrs[kind] = err.Error()
		errMu.Unlock()
		a.log.SourceFailure(string(kind), err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raws, err := a.client.ListHarvest(gctx, farmapi.ListFilters{})
		if err != nil {
			record(farmapi.SourceHarvest, err)
			return nil
		}
		harvest = normalizer.HarvestBatch(raws)
		return nil
	})
	g.Go(func() error {
		raws, err := a.client.ListPropertyEvaluations(gctx, farmapi.ListFilters{})
		if err != nil {
			record(farmapi.SourceProperty, err)
			return nil
		}
		property = normalizer.PropertyBatch(raws)
		return nil
	})
	g.Go(func() error {
		raws, err := a.client.ListPestManagement(gctx, farmapi.ListFilters{})
		if err != nil {
			record(farmapi.SourcePest, err)
			return nil
		}
		pest = normalizer.PestBatch(raws)
		return nil
	})
	g.Go(func() error {
		raws, err := a.client.ListRegular(gctx, farmapi.ListFilters{})
		if err != nil {
			record(farmapi.SourceRegular, err)
			return nil
		}
		regular = normalizer.RegularBatch(raws)
		return nil
	})
	// Goroutines swallow their own errors, so Wait only observes ctx.
	if err := g.Wait(); err != nil {
		return a.Snapshot(), apperr.Wrap(apperr.KindRemoteUnavailable, "refresh aborted", err).WithOp(op)
	}

	if len(sourceErrs) == len(farmapi.AllSources) {
		return a.Snapshot(), apperr.RemoteUnavailable("all upstream sources failed").
			WithOp(op).
			WithDetails(sourceErrDetails(sourceErrs))
	}

	merged := make([]domain.ServiceRequest, 0,
		len(harvest.Records)+len(property.Records)+len(pest.Records)+len(regular.Records))
	merged = append(merged, harvest.Records...)
	merged = append(merged, property.Records...)
	merged = append(merged, pest.Records...)
	merged = append(merged, regular.Records...)

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].SubmittedAt.Equal(merged[j].SubmittedAt) {
			return merged[i].SubmittedAt.After(merged[j].SubmittedAt)
		}
		return merged[i].ID < merged[j].ID
	})

	snap := Snapshot{
		Records:      merged,
		FetchedAt:    time.Now().UTC(),
		SourceErrors: sourceErrs,
		Malformed:    harvest.Malformed + property.Malformed + pest.Malformed + regular.Malformed,
	}

	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()

	a.bus.Publish(ctx, events.AggregationCompleted{
		BaseEvent:     events.NewBaseEvent(),
		Total:         len(merged),
		SourceErrors:  sourceErrDetailsStr(sourceErrs),
		SourcesFailed: len(sourceErrs),
	})

	if len(sourceErrs) > 0 {
		return snap, apperr.PartialAggregation("some upstream sources failed").
			WithOp(op).
			WithDetails(sourceErrDetails(sourceErrs))
	}
	return snap, nil
}

// Snapshot returns the current view. Records share backing storage with
// the snapshot; callers must treat them as read-only.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// Get returns the snapshot record with the given id.
func (a *Aggregator) Get(id string) (domain.ServiceRequest, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, rec := range a.snap.Records {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}
	return domain.ServiceRequest{}, apperr.NotFound("request not found").WithOp("aggregator.Get")
}

// Replace upserts a single record in the snapshot after a confirmed
// upstream mutation, so reads reflect the transition without waiting for
// the next full refresh.
func (a *Aggregator) Replace(rec domain.ServiceRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.snap.Records {
		if a.snap.Records[i].ID == rec.ID {
			a.snap.Records[i] = rec
			return
		}
	}
	a.snap.Records = append(a.snap.Records, rec)
}

// List returns the snapshot records matching the filter, ordered by the
// sort spec. Filters compose with AND; the free-text query matches the
// farmer name, phone, email, request number and service type label.
func (a *Aggregator) List(f Filter, s SortSpec) []domain.ServiceRequest {
	snap := a.Snapshot()

	out := make([]domain.ServiceRequest, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if matches(rec, f) {
			out = append(out, rec)
		}
	}
	sortRecords(out, s)
	return out
}

// Summarize recomputes counts over the current snapshot.
func (a *Aggregator) Summarize() Summary {
	snap := a.Snapshot()
	sum := Summary{
		Total:     len(snap.Records),
		ByStatus:  map[domain.Status]int{},
		ByType:    map[domain.ServiceType]int{},
		Malformed: snap.Malformed,
		FetchedAt: snap.FetchedAt,
	}
	for _, rec := range snap.Records {
		sum.ByStatus[rec.Status]++
		sum.ByType[rec.ServiceType]++
	}
	return sum
}

func matches(rec domain.ServiceRequest, f Filter) bool {
	// Filters compare against the canonical enum strings only. The tolerant
	// parsers would collapse unrecognized input onto their defaults and make
	// a bogus filter match real records.
	if f.Status != "" && !strings.EqualFold(strings.TrimSpace(f.Status), string(rec.Status)) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(strings.TrimSpace(f.Type), string(rec.ServiceType)) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(strings.TrimSpace(f.Query))
		haystacks := []string{
			rec.Farmer.Name,
			rec.Farmer.Phone,
			rec.Farmer.Email,
			rec.RequestNumber,
			rec.ServiceType.Label(),
		}
		found := false
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortRecords(recs []domain.ServiceRequest, s SortSpec) {
	less := lessFunc(s.Key)
	sort.SliceStable(recs, func(i, j int) bool {
		if s.Desc {
			return less(recs[j], recs[i])
		}
		return less(recs[i], recs[j])
	})
}

var priorityRank = map[domain.Priority]int{
	domain.PriorityLow:    0,
	domain.PriorityMedium: 1,
	domain.PriorityHigh:   2,
	domain.PriorityUrgent: 3,
}

func lessFunc(key string) func(a, b domain.ServiceRequest) bool {
	switch key {
	case "farmerName":
		return func(a, b domain.ServiceRequest) bool {
			return strings.ToLower(a.Farmer.Name) < strings.ToLower(b.Farmer.Name)
		}
	case "status":
		return func(a, b domain.ServiceRequest) bool { return a.Status < b.Status }
	case "serviceType":
		return func(a, b domain.ServiceRequest) bool { return a.ServiceType < b.ServiceType }
	case "priority":
		return func(a, b domain.ServiceRequest) bool {
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
	case "updatedAt":
		return func(a, b domain.ServiceRequest) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default: // submittedAt
		return func(a, b domain.ServiceRequest) bool { return a.SubmittedAt.Before(b.SubmittedAt) }
	}
}

func sourceErrDetails(errs map[farmapi.SourceKind]string) map[string]any {
	out := make(map[string]any, len(errs))
	for k, v := range errs {
		out[string(k)] = v
	}
	return out
}

func sourceErrDetailsStr(errs map[farmapi.SourceKind]string) map[string]string {
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[string(k)] = v
	}
	return out
}
