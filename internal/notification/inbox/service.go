package inbox

import (
	"context"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/scheduler"
	"farmlink_backend/platform/logger"
)

type Service struct {
	store  Store
	emails scheduler.EmailEnqueuer
	bus    events.Bus
	log    *logger.Logger
}

func NewService(store Store, emails scheduler.EmailEnqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, emails: emails, bus: bus, log: log}
}

// Record persists the notification and hands the email copy off for
// asynchronous delivery. Email handoff failures are logged and swallowed:
// a transition must never fail because a notification could not be sent.
func (s *Service) Record(ctx context.Context, n Notification) error {
	if err := s.store.Create(ctx, n); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.NotificationQueued{
			BaseEvent:      events.NewBaseEvent(),
			NotificationID: n.ID,
			RecipientID:    n.RecipientID,
		})
	}

	if s.emails != nil {
		err := s.emails.EnqueueNotificationEmail(ctx, scheduler.NotificationEmailPayload{
			NotificationID: n.ID,
			RecipientName:  n.RecipientName,
			RecipientEmail: n.RecipientEmail,
			Subject:        n.Title,
			Body:           n.Message,
		})
		if err != nil {
			s.log.DeliveryFailure(n.ID, n.RecipientID, err)
		}
	}

	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Notification, int, error) {
	return s.store.List(ctx, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	return s.store.CountUnread(ctx)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	return s.store.MarkAllRead(ctx)
}
