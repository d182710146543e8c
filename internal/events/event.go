// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"farmlink_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Request Lifecycle Events
// =============================================================================

// RequestTransitioned is published after a status change has been confirmed
// by the upstream store.
type RequestTransitioned struct {
	BaseEvent
	RequestID      string `json:"requestId"`
	ServiceType    string `json:"serviceType"`
	Action         string `json:"action"`
	FromStatus     string `json:"fromStatus"`
	ToStatus       string `json:"toStatus"`
	FarmerID       string `json:"farmerId"`
	FarmerName     string `json:"farmerName"`
	FarmerEmail    string `json:"farmerEmail,omitempty"`
	RescheduleDate string `json:"rescheduleDate,omitempty"`
}

func (e RequestTransitioned) EventName() string { return "requests.transitioned" }

// AggregationCompleted is published after a full multi-source refresh.
type AggregationCompleted struct {
	BaseEvent
	Total         int               `json:"total"`
	SourceErrors  map[string]string `json:"sourceErrors,omitempty"`
	SourcesFailed int               `json:"sourcesFailed"`
}

func (e AggregationCompleted) EventName() string { return "requests.aggregation.completed" }

// NotificationQueued is published when a farmer notification has been
// persisted to the inbox and handed off for delivery.
type NotificationQueued struct {
	BaseEvent
	NotificationID string `json:"notificationId"`
	RecipientID    string `json:"recipientId"`
}

func (e NotificationQueued) EventName() string { return "notifications.queued" }
