package handler

import (
	"net/http"

	"farmlink_backend/internal/requests/aggregator"
	"farmlink_backend/internal/requests/engine"
	"farmlink_backend/internal/requests/transport"
	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/httpkit"
	"farmlink_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	agg    *aggregator.Aggregator
	engine *engine.Engine
	val    *validator.Validator
}

func New(agg *aggregator.Aggregator, eng *engine.Engine, val *validator.Validator) *Handler {
	return &Handler{agg: agg, engine: eng, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/summary", h.Summary)
	rg.POST("/refresh", h.Refresh)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/start", h.Start)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/reschedule", h.Reschedule)
}

func (h *Handler) List(c *gin.Context) {
	filter := aggregator.Filter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Query:  c.Query("q"),
	}
	sort := aggregator.SortSpec{
		Key:  c.Query("sortBy"),
		Desc: c.Query("sortOrder") == "desc",
	}

	recs := h.agg.List(filter, sort)
	snap := h.agg.Snapshot()

	httpkit.OK(c, transport.ListResponse{
		Requests:     transport.FromDomainList(recs),
		Total:        len(recs),
		FetchedAt:    snap.FetchedAt,
		SourceErrors: sourceErrors(snap),
	})
}

func (h *Handler) Summary(c *gin.Context) {
	httpkit.OK(c, h.agg.Summarize())
}

func (h *Handler) GetByID(c *gin.Context) {
	rec, err := h.agg.Get(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

// Refresh re-fetches every source on demand. A partial failure still
// replaces the snapshot and reports which sources were skipped.
func (h *Handler) Refresh(c *gin.Context) {
	snap, err := h.agg.Refresh(c.Request.Context())
	status := http.StatusOK
	if err != nil {
		if apperr.GetKind(err) != apperr.KindPartialAggregation {
			httpkit.HandleError(c, err)
			return
		}
		status = http.StatusPartialContent
	}

	httpkit.JSON(c, status, transport.ListResponse{
		Requests:     transport.FromDomainList(snap.Records),
		Total:        len(snap.Records),
		FetchedAt:    snap.FetchedAt,
		SourceErrors: sourceErrors(snap),
	})
}

func (h *Handler) Approve(c *gin.Context) {
	var req transport.ApproveRequest
	if !h.bind(c, &req) {
		return
	}
	rec, err := h.engine.Approve(c.Request.Context(), c.Param("id"), engine.ApproveInput{Notes: req.Notes})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

func (h *Handler) Reject(c *gin.Context) {
	var req transport.RejectRequest
	if !h.bind(c, &req) {
		return
	}
	rec, err := h.engine.Reject(c.Request.Context(), c.Param("id"), engine.RejectInput{Reason: req.Reason})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

func (h *Handler) Start(c *gin.Context) {
	rec, err := h.engine.Start(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

func (h *Handler) Complete(c *gin.Context) {
	var req transport.CompleteRequest
	if !h.bind(c, &req) {
		return
	}
	rec, err := h.engine.Complete(c.Request.Context(), c.Param("id"), engine.CompleteInput{
		Notes:         req.Notes,
		Effectiveness: req.Effectiveness,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

func (h *Handler) Reschedule(c *gin.Context) {
	var req transport.RescheduleRequest
	if !h.bind(c, &req) {
		return
	}
	rec, err := h.engine.Reschedule(c.Request.Context(), c.Param("id"), engine.RescheduleInput{
		Date:   req.Date,
		Reason: req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromDomain(rec))
}

// bind decodes and validates the JSON body. An empty body is allowed for
// shapes whose fields are all optional.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return false
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func sourceErrors(snap aggregator.Snapshot) map[string]string {
	if len(snap.SourceErrors) == 0 {
		return nil
	}
	out := make(map[string]string, len(snap.SourceErrors))
	for k, v := range snap.SourceErrors {
		out[string(k)] = v
	}
	return out
}
