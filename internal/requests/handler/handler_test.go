package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/farmapi"
	"farmlink_backend/internal/requests/aggregator"
	"farmlink_backend/internal/requests/engine"
	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/logger"
	"farmlink_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type fakeClient struct {
	harvest []farmapi.RawHarvestRequest
	pest    []farmapi.RawPestRequest
	pestErr error

	mutationErr error
	mutations   int
}

func (f *fakeClient) ListHarvest(context.Context, farmapi.ListFilters) ([]farmapi.RawHarvestRequest, error) {
	return f.harvest, nil
}

func (f *fakeClient) ListPropertyEvaluations(context.Context, farmapi.ListFilters) ([]farmapi.RawPropertyRequest, error) {
	return nil, nil
}

func (f *fakeClient) ListPestManagement(context.Context, farmapi.ListFilters) ([]farmapi.RawPestRequest, error) {
	return f.pest, f.pestErr
}

func (f *fakeClient) ListRegular(context.Context, farmapi.ListFilters) ([]farmapi.RawRegularRequest, error) {
	return nil, nil
}

func (f *fakeClient) mutate() (*farmapi.RawRegularRequest, error) {
	f.mutations++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &farmapi.RawRegularRequest{}, nil
}

func (f *fakeClient) Approve(context.Context, string, farmapi.ApprovePayload) (*farmapi.RawRegularRequest, error) {
	return f.mutate()
}

func (f *fakeClient) Reject(context.Context, string, farmapi.RejectPayload) (*farmapi.RawRegularRequest, error) {
	return f.mutate()
}

func (f *fakeClient) Start(context.Context, string, farmapi.StartPayload) (*farmapi.RawRegularRequest, error) {
	return f.mutate()
}

func (f *fakeClient) Complete(context.Context, string, farmapi.CompletePayload) (*farmapi.RawRegularRequest, error) {
	return f.mutate()
}

func (f *fakeClient) Reschedule(context.Context, string, farmapi.ReschedulePayload) (*farmapi.RawRegularRequest, error) {
	return f.mutate()
}

func (f *fakeClient) UpdateStatus(context.Context, string, farmapi.UpdateStatusPayload) (*farmapi.RawRegularRequest, error) {
	return f.mutate()
}

func seedClient() *fakeClient {
	return &fakeClient{
		harvest: []farmapi.RawHarvestRequest{
			{RawRequestCore: farmapi.RawRequestCore{
				ID:          "h1",
				Status:      "pending",
				FarmerName:  "Alice Mukamana",
				SubmittedAt: "2024-05-01T10:00:00Z",
			}},
			{RawRequestCore: farmapi.RawRequestCore{
				ID:          "h2",
				Status:      "approved",
				FarmerName:  "Jean Bosco",
				SubmittedAt: "2024-05-02T10:00:00Z",
			}},
		},
		pest: []farmapi.RawPestRequest{
			{RawRequestCore: farmapi.RawRequestCore{
				ID:          "x1",
				Status:      "pending",
				FarmerName:  "Chantal Uwera",
				SubmittedAt: "2024-05-03T10:00:00Z",
			}},
		},
	}
}

func newTestServer(t *testing.T, client *fakeClient) (*gin.Engine, *aggregator.Aggregator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	agg := aggregator.New(client, bus, log)
	if _, err := agg.Refresh(context.Background()); err != nil &&
		apperr.GetKind(err) != apperr.KindPartialAggregation {
		t.Fatalf("seed refresh: %v", err)
	}

	eng := engine.New(client, agg, bus, log)
	h := New(agg, eng, validator.New())

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1/requests"))
	return r, agg
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListWithFilters(t *testing.T) {
	r, _ := newTestServer(t, seedClient())

	w := do(r, http.MethodGet, "/api/v1/requests?status=pending&type=harvest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Requests []struct {
			ID string `json:"id"`
		} `json:"requests"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Requests) != 1 || resp.Requests[0].ID != "h1" {
		t.Errorf("resp = %+v, want only h1", resp)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	r, _ := newTestServer(t, seedClient())

	w := do(r, http.MethodGet, "/api/v1/requests/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var sum struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"byStatus"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Total != 3 || sum.ByStatus["pending"] != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestGetUnknownRequest(t *testing.T) {
	r, _ := newTestServer(t, seedClient())

	if w := do(r, http.MethodGet, "/api/v1/requests/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestApproveEndpoint(t *testing.T) {
	r, _ := newTestServer(t, seedClient())

	w := do(r, http.MethodPost, "/api/v1/requests/h1/approve", `{"notes":"crew booked"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "approved" {
		t.Errorf("status = %q, want approved", resp.Status)
	}
}

func TestCompleteBeforeStartRejected(t *testing.T) {
	client := seedClient()
	r, _ := newTestServer(t, client)

	w := do(r, http.MethodPost, "/api/v1/requests/h2/complete", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", w.Code, w.Body.String())
	}
	if client.mutations != 0 {
		t.Errorf("denied transition reached upstream %d times", client.mutations)
	}
}

func TestStaleUpstreamMapsToConflict(t *testing.T) {
	client := seedClient()
	r, _ := newTestServer(t, client)
	client.mutationErr = apperr.StaleState("request state has changed upstream")

	w := do(r, http.MethodPost, "/api/v1/requests/h1/approve", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", w.Code, w.Body.String())
	}
	if client.mutations != 1 {
		t.Errorf("upstream calls = %d, want exactly 1", client.mutations)
	}
}

func TestRejectWithoutReasonIsBadRequest(t *testing.T) {
	client := seedClient()
	r, _ := newTestServer(t, client)

	w := do(r, http.MethodPost, "/api/v1/requests/h1/reject", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if client.mutations != 0 {
		t.Errorf("invalid payload reached upstream %d times", client.mutations)
	}
}

func TestRefreshReportsPartialContent(t *testing.T) {
	client := seedClient()
	r, _ := newTestServer(t, client)
	client.pestErr = apperr.RemoteUnavailable("farm api error: status 503")

	w := do(r, http.MethodPost, "/api/v1/requests/refresh", "")
	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206; body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Total        int               `json:"total"`
		SourceErrors map[string]string `json:"sourceErrors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want healthy-source records only", resp.Total)
	}
	if _, ok := resp.SourceErrors["pest_management"]; !ok {
		t.Errorf("sourceErrors = %v, want pest_management entry", resp.SourceErrors)
	}
}
