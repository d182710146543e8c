package notification

import (
	"farmlink_backend/internal/events"
	apphttp "farmlink_backend/internal/http"
	"farmlink_backend/internal/notification/handler"
	"farmlink_backend/internal/notification/inbox"
	"farmlink_backend/internal/scheduler"
	"farmlink_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the notification bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *inbox.Repository
	service *inbox.Service
	emitter *Emitter
}

// NewModule wires the inbox around the database pool and subscribes the
// emitter to request transition events.
func NewModule(pool *pgxpool.Pool, bus events.Bus, emails scheduler.EmailEnqueuer, log *logger.Logger) *Module {
	repo := inbox.NewRepository(pool)
	svc := inbox.NewService(repo, emails, bus, log)
	emitter := NewEmitter(svc, log)

	bus.Subscribe(events.RequestTransitioned{}.EventName(), events.HandlerFunc(emitter.HandleTransition))

	return &Module{
		handler: handler.New(svc),
		repo:    repo,
		service: svc,
		emitter: emitter,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notifications"
}

// Repository exposes the inbox store for the scheduler's retention job.
func (m *Module) Repository() *inbox.Repository {
	return m.repo
}

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/notifications")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
