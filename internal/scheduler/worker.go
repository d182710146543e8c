package scheduler

import (
	"context"
	"fmt"
	"time"

	"farmlink_backend/internal/email"
	"farmlink_backend/platform/config"
	"farmlink_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// InboxPurger removes old read notifications. Implemented by the inbox
// repository; kept as an interface here to avoid a package cycle.
type InboxPurger interface {
	PurgeRead(ctx context.Context, olderThan time.Time) (int, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender email.Sender
	purger InboxPurger
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sender email.Sender, purger InboxPurger, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		sender: sender,
		purger: purger,
		log:    log,
	}

	mux.HandleFunc(TaskNotificationEmail, w.handleNotificationEmail)
	mux.HandleFunc(TaskInboxPurge, w.handleInboxPurge)

	return w, nil
}

func (w *Worker) handleNotificationEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationEmailPayload(task)
	if err != nil {
		return err
	}
	if payload.RecipientEmail == "" || payload.RecipientEmail == "N/A" {
		w.log.Debug("skipping email delivery, recipient has no address",
			"notificationId", payload.NotificationID)
		return nil
	}

	if err := w.sender.SendNotificationEmail(ctx, payload.RecipientEmail, payload.RecipientName, payload.Subject, payload.Body); err != nil {
		w.log.DeliveryFailure(payload.NotificationID, payload.RecipientEmail, err)
		return err
	}

	w.log.Info("notification email delivered",
		"notificationId", payload.NotificationID)
	return nil
}

func (w *Worker) handleInboxPurge(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInboxPurgePayload(task)
	if err != nil {
		return err
	}
	days := payload.RetentionDays
	if days < 1 {
		days = 90
	}

	removed, err := w.purger.PurgeRead(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	w.log.Info("purged read notifications", "removed", removed, "retentionDays", days)
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	return w.server.Run(w.mux)
}
