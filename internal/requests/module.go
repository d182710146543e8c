// Package requests provides the service-request lifecycle bounded context:
// source aggregation, the transition engine and their HTTP surface.
package requests

import (
	"farmlink_backend/internal/events"
	"farmlink_backend/internal/farmapi"
	apphttp "farmlink_backend/internal/http"
	"farmlink_backend/internal/requests/aggregator"
	"farmlink_backend/internal/requests/engine"
	"farmlink_backend/internal/requests/handler"
	"farmlink_backend/platform/logger"
	"farmlink_backend/platform/validator"
)

// Module is the requests bounded context implementing http.Module.
type Module struct {
	handler    *handler.Handler
	aggregator *aggregator.Aggregator
	engine     *engine.Engine
}

// NewModule wires the aggregator, engine and handler around the farm API
// client.
func NewModule(client farmapi.Client, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	agg := aggregator.New(client, bus, log)
	eng := engine.New(client, agg, bus, log)

	return &Module{
		handler:    handler.New(agg, eng, val),
		aggregator: agg,
		engine:     eng,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "requests"
}

// Aggregator exposes the snapshot layer for the scheduler worker.
func (m *Module) Aggregator() *aggregator.Aggregator {
	return m.aggregator
}

// RegisterRoutes mounts request routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/requests")
	group.Use(ctx.RateLimiter.RateLimit())
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
