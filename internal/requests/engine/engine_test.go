package engine

import (
	"context"
	"testing"
	"time"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/farmapi"
	"farmlink_backend/internal/requests/aggregator"
	"farmlink_backend/internal/requests/domain"
	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/logger"
)

type mutationCall struct {
	verb string
	id   string
}

type fakeClient struct {
	calls []mutationCall
	err   error
}

func (f *fakeClient) record(verb, id string) (*farmapi.RawRegularRequest, error) {
	f.calls = append(f.calls, mutationCall{verb: verb, id: id})
	if f.err != nil {
		return nil, f.err
	}
	return &farmapi.RawRegularRequest{}, nil
}

func (f *fakeClient) ListHarvest(context.Context, farmapi.ListFilters) ([]farmapi.RawHarvestRequest, error) {
	return nil, nil
}

func (f *fakeClient) ListPropertyEvaluations(context.Context, farmapi.ListFilters) ([]farmapi.RawPropertyRequest, error) {
	return nil, nil
}

func (f *fakeClient) ListPestManagement(context.Context, farmapi.ListFilters) ([]farmapi.RawPestRequest, error) {
	return nil, nil
}

func (f *fakeClient) ListRegular(context.Context, farmapi.ListFilters) ([]farmapi.RawRegularRequest, error) {
	return nil, nil
}

func (f *fakeClient) Approve(_ context.Context, id string, _ farmapi.ApprovePayload) (*farmapi.RawRegularRequest, error) {
	return f.record("approve", id)
}

func (f *fakeClient) Reject(_ context.Context, id string, _ farmapi.RejectPayload) (*farmapi.RawRegularRequest, error) {
	return f.record("reject", id)
}

func (f *fakeClient) Start(_ context.Context, id string, _ farmapi.StartPayload) (*farmapi.RawRegularRequest, error) {
	return f.record("start", id)
}

func (f *fakeClient) Complete(_ context.Context, id string, _ farmapi.CompletePayload) (*farmapi.RawRegularRequest, error) {
	return f.record("complete", id)
}

func (f *fakeClient) Reschedule(_ context.Context, id string, _ farmapi.ReschedulePayload) (*farmapi.RawRegularRequest, error) {
	return f.record("reschedule", id)
}

func (f *fakeClient) UpdateStatus(_ context.Context, id string, _ farmapi.UpdateStatusPayload) (*farmapi.RawRegularRequest, error) {
	return f.record("update_status", id)
}

type fixture struct {
	engine *Engine
	client *fakeClient
	agg    *aggregator.Aggregator
	bus    events.Bus
}

func newFixture(t *testing.T, recs ...domain.ServiceRequest) *fixture {
	t.Helper()
	log := logger.New("test")
	client := &fakeClient{}
	bus := events.NewInMemoryBus(log)
	agg := aggregator.New(client, bus, log)
	for _, rec := range recs {
		agg.Replace(rec)
	}
	eng := New(client, agg, bus, log)
	eng.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{
		engine: eng,
		client: client,
		agg:    agg,
		bus:    bus,
	}
}

func request(id string, svcType domain.ServiceType, status domain.Status) domain.ServiceRequest {
	submitted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return domain.ServiceRequest{
		ID:            id,
		RequestNumber: "REQ-" + id,
		ServiceType:   svcType,
		Status:        status,
		Priority:      domain.PriorityMedium,
		Farmer: domain.Farmer{
			ID:    "farmer-1",
			Name:  "Alice Mukamana",
			Email: "alice@example.rw",
		},
		SubmittedAt: submitted,
		UpdatedAt:   submitted,
		StatusHistory: []domain.HistoryEntry{
			{Status: domain.StatusPending, Timestamp: submitted, Note: "Request submitted"},
		},
	}
}

func TestHarvestFullLifecycle(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusPending))
	ctx := context.Background()

	rec, err := f.engine.Approve(ctx, "h1", ApproveInput{Notes: "crew assigned"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Status != domain.StatusApproved {
		t.Fatalf("status after approve = %q", rec.Status)
	}

	if rec, err = f.engine.Start(ctx, "h1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rec.Status != domain.StatusInProgress {
		t.Fatalf("status after start = %q", rec.Status)
	}

	if rec, err = f.engine.Complete(ctx, "h1", CompleteInput{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status after complete = %q", rec.Status)
	}

	if len(rec.StatusHistory) != 4 {
		t.Errorf("history length = %d, want 4 (submitted + 3 transitions)", len(rec.StatusHistory))
	}
	if got := len(f.client.calls); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestHarvestCannotCompleteWithoutStart(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusApproved))

	_, err := f.engine.Complete(context.Background(), "h1", CompleteInput{})
	if apperr.GetKind(err) != apperr.KindInvalidTransition {
		t.Fatalf("err kind = %v, want invalid transition", apperr.GetKind(err))
	}
	if len(f.client.calls) != 0 {
		t.Errorf("denied transition must not reach upstream, got %v", f.client.calls)
	}
	rec, _ := f.agg.Get("h1")
	if rec.Status != domain.StatusApproved {
		t.Errorf("local status mutated to %q on denied transition", rec.Status)
	}
}

func TestPropertyEvaluationCompletesDirectly(t *testing.T) {
	f := newFixture(t, request("p1", domain.TypePropertyEvaluation, domain.StatusApproved))

	rec, err := f.engine.Complete(context.Background(), "p1", CompleteInput{Notes: "soil report filed"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
}

func TestRejectOnlyFromPending(t *testing.T) {
	f := newFixture(t, request("x1", domain.TypePestManagement, domain.StatusPostponed))

	_, err := f.engine.Reject(context.Background(), "x1", RejectInput{Reason: "duplicate"})
	if apperr.GetKind(err) != apperr.KindInvalidTransition {
		t.Fatalf("err kind = %v, want invalid transition", apperr.GetKind(err))
	}
	if len(f.client.calls) != 0 {
		t.Errorf("denied reject must not reach upstream, got %v", f.client.calls)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusPending))

	_, err := f.engine.Reject(context.Background(), "h1", RejectInput{Reason: "  "})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err kind = %v, want validation", apperr.GetKind(err))
	}
	if len(f.client.calls) != 0 {
		t.Errorf("invalid payload must not reach upstream, got %v", f.client.calls)
	}
}

func TestRescheduleRequiresParsableDate(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusApproved))
	ctx := context.Background()

	if _, err := f.engine.Reschedule(ctx, "h1", RescheduleInput{}); apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("missing date: kind = %v, want validation", apperr.GetKind(err))
	}
	if _, err := f.engine.Reschedule(ctx, "h1", RescheduleInput{Date: "01/07/2024", Reason: "rain"}); apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("bad layout: kind = %v, want validation", apperr.GetKind(err))
	}
	if _, err := f.engine.Reschedule(ctx, "h1", RescheduleInput{Date: "2024-07-01"}); apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("missing reason: kind = %v, want validation", apperr.GetKind(err))
	}
	if len(f.client.calls) != 0 {
		t.Errorf("invalid payloads must not reach upstream, got %v", f.client.calls)
	}
}

func TestRescheduleRejectsPastDate(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusApproved))

	_, err := f.engine.Reschedule(context.Background(), "h1", RescheduleInput{Date: "2024-05-31", Reason: "rain"})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err kind = %v, want validation", apperr.GetKind(err))
	}
	if len(f.client.calls) != 0 {
		t.Errorf("past date must not reach upstream, got %v", f.client.calls)
	}
}

func TestRescheduleThenReapprove(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusApproved))
	ctx := context.Background()

	rec, err := f.engine.Reschedule(ctx, "h1", RescheduleInput{Date: "2024-07-01", Reason: "heavy rain"})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if rec.Status != domain.StatusPostponed {
		t.Fatalf("status = %q, want postponed", rec.Status)
	}
	if rec.RescheduleDate == nil || rec.RescheduleDate.Format("2006-01-02") != "2024-07-01" {
		t.Fatalf("RescheduleDate = %v, want 2024-07-01", rec.RescheduleDate)
	}
	last := rec.StatusHistory[len(rec.StatusHistory)-1]
	if last.Note != "Postponed to 2024-07-01: heavy rain" {
		t.Errorf("history note = %q", last.Note)
	}

	rec, err = f.engine.Approve(ctx, "h1", ApproveInput{})
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if rec.Status != domain.StatusApproved {
		t.Errorf("status after re-approve = %q", rec.Status)
	}
	if rec.RescheduleDate != nil {
		t.Errorf("re-approval must clear the reschedule date, got %v", rec.RescheduleDate)
	}
}

func TestRegularRecordGoesThroughGenericStatusUpdate(t *testing.T) {
	f := newFixture(t, request("r1", domain.TypeUnknown, domain.StatusPending))

	rec, err := f.engine.Approve(context.Background(), "r1", ApproveInput{})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Status != domain.StatusApproved {
		t.Errorf("status = %q, want approved", rec.Status)
	}
	if len(f.client.calls) != 1 || f.client.calls[0].verb != "update_status" {
		t.Errorf("upstream calls = %v, want one update_status", f.client.calls)
	}
}

func TestStaleUpstreamLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusPending))
	f.client.err = apperr.StaleState("request state has changed upstream")

	_, err := f.engine.Approve(context.Background(), "h1", ApproveInput{})
	if apperr.GetKind(err) != apperr.KindStaleState {
		t.Fatalf("err kind = %v, want stale state", apperr.GetKind(err))
	}
	if len(f.client.calls) != 1 {
		t.Errorf("upstream calls = %d, want exactly 1 (no retry)", len(f.client.calls))
	}
	rec, _ := f.agg.Get("h1")
	if rec.Status != domain.StatusPending {
		t.Errorf("local status = %q after upstream conflict, want pending", rec.Status)
	}
	if len(rec.StatusHistory) != 1 {
		t.Errorf("history grew on failed mutation: %d entries", len(rec.StatusHistory))
	}
}

func TestRemoteUnavailableNotRetried(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusPending))
	f.client.err = apperr.RemoteUnavailable("farm api error: status 503")

	_, err := f.engine.Approve(context.Background(), "h1", ApproveInput{})
	if apperr.GetKind(err) != apperr.KindRemoteUnavailable {
		t.Fatalf("err kind = %v, want remote unavailable", apperr.GetKind(err))
	}
	if len(f.client.calls) != 1 {
		t.Errorf("upstream calls = %d, want exactly 1", len(f.client.calls))
	}
}

func TestUnknownRequestIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Start(context.Background(), "missing")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("err kind = %v, want not found", apperr.GetKind(err))
	}
}

func TestTransitionPublishesEvent(t *testing.T) {
	f := newFixture(t, request("h1", domain.TypeHarvest, domain.StatusPending))

	got := make(chan events.RequestTransitioned, 1)
	f.bus.Subscribe("requests.transitioned", events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if evt, ok := e.(events.RequestTransitioned); ok {
			got <- evt
		}
		return nil
	}))

	if _, err := f.engine.Approve(context.Background(), "h1", ApproveInput{}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	select {
	case evt := <-got:
		if evt.RequestID != "h1" || evt.Action != "approve" || evt.ToStatus != "approved" {
			t.Errorf("event = %+v", evt)
		}
		if evt.FarmerName != "Alice Mukamana" {
			t.Errorf("FarmerName = %q", evt.FarmerName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transition event published")
	}
}
