package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type stubSchedulerConfig struct {
	redisURL string
}

func (s stubSchedulerConfig) GetRedisURL() string { return s.redisURL }
func (s stubSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (s stubSchedulerConfig) GetAsynqQueueName() string { return "farmlink" }
func (s stubSchedulerConfig) GetAsynqConcurrency() int { return 2 }

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(stubSchedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}

func TestEnqueueNotificationEmail(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(stubSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	err = client.EnqueueNotificationEmail(context.Background(), NotificationEmailPayload{
		NotificationID: "hrv-101-1715594400000000000",
		RecipientName:  "Alice Mukamana",
		RecipientEmail: "alice@example.rw",
		Subject:        "Harvest request approved",
		Body:           "Your Harvest request has been approved.",
	})
	if err != nil {
		t.Fatalf("EnqueueNotificationEmail: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("farmlink")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskNotificationEmail {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskNotificationEmail)
	}

	payload, err := ParseNotificationEmailPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.RecipientEmail != "alice@example.rw" {
		t.Errorf("RecipientEmail = %q", payload.RecipientEmail)
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewInboxPurgeTask(InboxPurgePayload{RetentionDays: 30})
	if err != nil {
		t.Fatalf("NewInboxPurgeTask: %v", err)
	}
	payload, err := ParseInboxPurgePayload(task)
	if err != nil {
		t.Fatalf("ParseInboxPurgePayload: %v", err)
	}
	if payload.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", payload.RetentionDays)
	}
}
