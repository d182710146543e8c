// Package notification turns request transition events into farmer-facing
// inbox entries and email deliveries. It subscribes to domain events, so
// the requests module never depends on how notifications are delivered.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/notification/inbox"
	"farmlink_backend/internal/requests/domain"
	"farmlink_backend/platform/logger"
)

// Emitter builds one inbox notification per confirmed transition.
type Emitter struct {
	svc *inbox.Service
	log *logger.Logger
	now func() time.Time
}

func NewEmitter(svc *inbox.Service, log *logger.Logger) *Emitter {
	return &Emitter{
		svc: svc,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// HandleTransition consumes a RequestTransitioned event. Failures are
// logged and swallowed; the transition has already been confirmed upstream
// and must not be rolled back over a notification problem.
func (e *Emitter) HandleTransition(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.RequestTransitioned)
	if !ok {
		return nil
	}

	n := e.build(evt)
	if err := e.svc.Record(ctx, n); err != nil {
		e.log.DeliveryFailure(n.ID, n.RecipientID, err)
	}
	return nil
}

func (e *Emitter) build(evt events.RequestTransitioned) inbox.Notification {
	now := e.now()
	label := domain.ServiceType(evt.ServiceType).Label()
	status := strings.ReplaceAll(evt.ToStatus, "_", " ")

	var message string
	if evt.ToStatus == string(domain.StatusPostponed) && evt.RescheduleDate != "" {
		message = fmt.Sprintf("Your %s request has been postponed to %s.", label, evt.RescheduleDate)
	} else {
		message = fmt.Sprintf("Your %s request has been %s.", label, status)
	}

	return inbox.Notification{
		// Emission time keeps IDs unique across repeated transitions of
		// the same request.
		ID:             fmt.Sprintf("%s-%d", evt.RequestID, now.UnixNano()),
		RecipientID:    evt.FarmerID,
		RecipientName:  evt.FarmerName,
		RecipientEmail: evt.FarmerEmail,
		RequestID:      evt.RequestID,
		ServiceType:    evt.ServiceType,
		Title:          fmt.Sprintf("%s request %s", label, status),
		Message:        message,
		Category:       categoryFor(evt.ToStatus),
		CreatedAt:      now,
	}
}

func categoryFor(toStatus string) string {
	switch domain.Status(toStatus) {
	case domain.StatusApproved, domain.StatusCompleted:
		return "success"
	case domain.StatusRejected:
		return "error"
	case domain.StatusPostponed:
		return "warning"
	default:
		return "info"
	}
}
