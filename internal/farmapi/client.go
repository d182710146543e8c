package farmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/config"
	"farmlink_backend/platform/logger"
)

// Client is the boundary to the upstream request-management service. The
// engine and aggregator depend on this interface, never on the HTTP
// implementation directly.
type Client interface {
	ListHarvest(ctx context.Context, f ListFilters) ([]RawHarvestRequest, error)
	ListPropertyEvaluations(ctx context.Context, f ListFilters) ([]RawPropertyRequest, error)
	ListPestManagement(ctx context.Context, f ListFilters) ([]RawPestRequest, error)
	ListRegular(ctx context.Context, f ListFilters) ([]RawRegularRequest, error)

	Approve(ctx context.Context, id string, p ApprovePayload) (*RawRegularRequest, error)
	Reject(ctx context.Context, id string, p RejectPayload) (*RawRegularRequest, error)
	Start(ctx context.Context, id string, p StartPayload) (*RawRegularRequest, error)
	Complete(ctx context.Context, id string, p CompletePayload) (*RawRegularRequest, error)
	Reschedule(ctx context.Context, id string, p ReschedulePayload) (*RawRegularRequest, error)
	UpdateStatus(ctx context.Context, id string, p UpdateStatusPayload) (*RawRegularRequest, error)
}

// HTTPClient implements Client against the farm API over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new farm API client. The timeout bounds every call; a
// timed-out mutation is treated as failed-not-applied by callers.
func New(cfg config.FarmAPIConfig, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.GetFarmAPITimeout()},
		baseURL:    cfg.GetFarmAPIBaseURL(),
		apiKey:     cfg.GetFarmAPIKey(),
		log:        log,
	}
}

func (c *HTTPClient) ListHarvest(ctx context.Context, f ListFilters) ([]RawHarvestRequest, error) {
	var out []RawHarvestRequest
	if err := c.list(ctx, SourceHarvest, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListPropertyEvaluations(ctx context.Context, f ListFilters) ([]RawPropertyRequest, error) {
	var out []RawPropertyRequest
	if err := c.list(ctx, SourceProperty, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListPestManagement(ctx context.Context, f ListFilters) ([]RawPestRequest, error) {
	var out []RawPestRequest
	if err := c.list(ctx, SourcePest, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListRegular(ctx context.Context, f ListFilters) ([]RawRegularRequest, error) {
	var out []RawRegularRequest
	if err := c.list(ctx, SourceRegular, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Approve(ctx context.Context, id string, p ApprovePayload) (*RawRegularRequest, error) {
	return c.action(ctx, id, "approve", p)
}

func (c *HTTPClient) Reject(ctx context.Context, id string, p RejectPayload) (*RawRegularRequest, error) {
	return c.action(ctx, id, "reject", p)
}

func (c *HTTPClient) Start(ctx context.Context, id string, p StartPayload) (*RawRegularRequest, error) {
	return c.action(ctx, id, "start", p)
}

func (c *HTTPClient) Complete(ctx context.Context, id string, p CompletePayload) (*RawRegularRequest, error) {
	return c.action(ctx, id, "complete", p)
}

func (c *HTTPClient) Reschedule(ctx context.Context, id string, p ReschedulePayload) (*RawRegularRequest, error) {
	return c.action(ctx, id, "reschedule", p)
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, id string, p UpdateStatusPayload) (*RawRegularRequest, error) {
	reqURL := fmt.Sprintf("%s/api/v1/requests/%s/status", c.baseURL, url.PathEscape(id))
	var out RawRegularRequest
	if err := c.do(ctx, http.MethodPatch, reqURL, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) list(ctx context.Context, kind SourceKind, f ListFilters, out any) error {
	params := url.Values{}
	if f.Status != "" {
		params.Set("status", f.Status)
	}

	reqURL := fmt.Sprintf("%s/api/v1/requests/%s", c.baseURL, url.PathEscape(string(kind)))
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	return c.do(ctx, http.MethodGet, reqURL, nil, out)
}

// action issues one mutation. Mutations are never retried here: the
// upstream store is not idempotent-safe, so a failed call surfaces as an
// error and the caller decides what to do next.
func (c *HTTPClient) action(ctx context.Context, id, verb string, payload any) (*RawRegularRequest, error) {
	reqURL := fmt.Sprintf("%s/api/v1/requests/%s/%s", c.baseURL, url.PathEscape(id), verb)
	var out RawRegularRequest
	if err := c.do(ctx, http.MethodPost, reqURL, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, reqURL string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "encode request payload", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Error("farm api request failed", "error", err, "url", reqURL)
		return apperr.Wrap(apperr.KindRemoteUnavailable, "farm api unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		// Success - continue to decode
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("request not found upstream")
	case resp.StatusCode == http.StatusConflict:
		// The record is no longer in the status this client assumed.
		// Surfaced distinctly so callers re-fetch instead of retrying.
		c.log.Warn("farm api stale state", "url", reqURL)
		return apperr.StaleState(decodeUpstreamMessage(resp, "request state has changed upstream"))
	case resp.StatusCode == http.StatusBadRequest:
		return apperr.BadRequest(decodeUpstreamMessage(resp, "farm api rejected the request"))
	case resp.StatusCode >= 500:
		c.log.Error("farm api upstream error", "status", resp.StatusCode, "url", reqURL)
		return apperr.RemoteUnavailable(fmt.Sprintf("farm api error: status %d", resp.StatusCode))
	default:
		c.log.Error("farm api unexpected status", "status", resp.StatusCode, "url", reqURL)
		return apperr.RemoteUnavailable(fmt.Sprintf("unexpected upstream status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Error("farm api decode failed", "error", err, "url", reqURL)
		return apperr.Wrap(apperr.KindRemoteUnavailable, "decode farm api response", err)
	}
	return nil
}

// decodeUpstreamMessage extracts the upstream error message when the body
// carries one, falling back to the provided default.
func decodeUpstreamMessage(resp *http.Response, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fallback
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return fallback
}

var _ Client = (*HTTPClient)(nil)
