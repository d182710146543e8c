package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotificationEmail = "notifications.email.deliver"

const TaskInboxPurge = "notifications.inbox.purge"

type NotificationEmailPayload struct {
	NotificationID string `json:"notificationId"`
	RecipientName  string `json:"recipientName"`
	RecipientEmail string `json:"recipientEmail"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

type InboxPurgePayload struct {
	RetentionDays int `json:"retentionDays"`
}

func NewNotificationEmailTask(payload NotificationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationEmail, data), nil
}

func ParseNotificationEmailPayload(task *asynq.Task) (NotificationEmailPayload, error) {
	var payload NotificationEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationEmailPayload{}, err
	}
	return payload, nil
}

func NewInboxPurgeTask(payload InboxPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInboxPurge, data), nil
}

func ParseInboxPurgePayload(task *asynq.Task) (InboxPurgePayload, error) {
	var payload InboxPurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InboxPurgePayload{}, err
	}
	return payload, nil
}
