// Package engine applies lifecycle transitions to service requests. Every
// mutation is confirmed by the upstream store before any local state
// changes: the engine validates, calls the farm API exactly once, and only
// rewrites the snapshot record after the upstream call succeeded.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farmlink_backend/internal/events"
	"farmlink_backend/internal/farmapi"
	"farmlink_backend/internal/requests/aggregator"
	"farmlink_backend/internal/requests/domain"
	"farmlink_backend/platform/apperr"
	"farmlink_backend/platform/logger"
)

const rescheduleDateLayout = "2006-01-02"

// ApproveInput carries optional reviewer notes.
type ApproveInput struct {
	Notes string `json:"notes"`
}

// RejectInput requires a reason so the farmer always learns why.
type RejectInput struct {
	Reason string `json:"reason"`
}

// CompleteInput carries optional completion notes. Effectiveness is only
// meaningful for pest management and is ignored elsewhere.
type CompleteInput struct {
	Notes         string `json:"notes"`
	Effectiveness string `json:"effectiveness"`
}

// RescheduleInput requires both the new date and the reason.
type RescheduleInput struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// Engine coordinates validation, the remote mutation and the local
// snapshot update for each transition.
type Engine struct {
	client farmapi.Client
	agg    *aggregator.Aggregator
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func New(client farmapi.Client, agg *aggregator.Aggregator, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		client: client,
		agg:    agg,
		bus:    bus,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Approve moves a pending or postponed request to approved. Re-approving a
// postponed request clears its reschedule date.
func (e *Engine) Approve(ctx context.Context, id string, in ApproveInput) (domain.ServiceRequest, error) {
	return e.transition(ctx, id, domain.ActionApprove, transitionOpts{
		note: joinNote("Request approved", in.Notes),
		call: func(ctx context.Context) error {
			_, err := e.client.Approve(ctx, id, farmapi.ApprovePayload{Notes: in.Notes})
			return err
		},
	})
}

// Reject declines a pending request. Rejection is terminal.
func (e *Engine) Reject(ctx context.Context, id string, in RejectInput) (domain.ServiceRequest, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return domain.ServiceRequest{}, apperr.Validation("rejection requires a reason").WithOp("engine.Reject")
	}
	return e.transition(ctx, id, domain.ActionReject, transitionOpts{
		note: "Rejected: " + strings.TrimSpace(in.Reason),
		call: func(ctx context.Context) error {
			_, err := e.client.Reject(ctx, id, farmapi.RejectPayload{Reason: in.Reason})
			return err
		},
	})
}

// Start begins field work on an approved harvest or pest request.
func (e *Engine) Start(ctx context.Context, id string) (domain.ServiceRequest, error) {
	return e.transition(ctx, id, domain.ActionStart, transitionOpts{
		note: "Work started",
		call: func(ctx context.Context) error {
			_, err := e.client.Start(ctx, id, farmapi.StartPayload{})
			return err
		},
	})
}

// Complete finishes a request. Field-work types must have been started;
// property evaluations may complete directly from approved.
func (e *Engine) Complete(ctx context.Context, id string, in CompleteInput) (domain.ServiceRequest, error) {
	return e.transition(ctx, id, domain.ActionComplete, transitionOpts{
		note: joinNote("Work completed", in.Notes),
		call: func(ctx context.Context) error {
			_, err := e.client.Complete(ctx, id, farmapi.CompletePayload{
				Notes:         in.Notes,
				Effectiveness: in.Effectiveness,
			})
			return err
		},
	})
}

// Reschedule postpones a request to a new date. The only way out of
// postponed is re-approval.
func (e *Engine) Reschedule(ctx context.Context, id string, in RescheduleInput) (domain.ServiceRequest, error) {
	const op = "engine.Reschedule"
	raw := strings.TrimSpace(in.Date)
	if raw == "" {
		return domain.ServiceRequest{}, apperr.Validation("reschedule requires a date").WithOp(op)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return domain.ServiceRequest{}, apperr.Validation("reschedule requires a reason").WithOp(op)
	}
	date, err := time.Parse(rescheduleDateLayout, raw)
	if err != nil {
		return domain.ServiceRequest{}, apperr.Validation("reschedule date must be YYYY-MM-DD").WithOp(op)
	}
	if today := startOfDay(e.now()); date.Before(today) {
		return domain.ServiceRequest{}, apperr.Validation("reschedule date must not be in the past").WithOp(op)
	}

	return e.transition(ctx, id, domain.ActionReschedule, transitionOpts{
		note:           joinNote("Postponed to "+raw, in.Reason),
		rescheduleDate: &date,
		call: func(ctx context.Context) error {
			_, err := e.client.Reschedule(ctx, id, farmapi.ReschedulePayload{Date: raw, Reason: in.Reason})
			return err
		},
	})
}

type transitionOpts struct {
	note           string
	rescheduleDate *time.Time
	call           func(ctx context.Context) error
}

func (e *Engine) transition(ctx context.Context, id string, action domain.Action, opts transitionOpts) (domain.ServiceRequest, error) {
	rec, err := e.agg.Get(id)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	target, err := domain.CanTransition(rec.ServiceType, rec.Status, action)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	// One upstream call, never retried. A failure here means the record
	// did not change; the caller decides whether to try again. Records
	// from the regular source have no type-specific action endpoints, so
	// they go through the generic status update instead.
	call := opts.call
	if rec.ServiceType == domain.TypeUnknown {
		call = func(ctx context.Context) error {
			payload := farmapi.UpdateStatusPayload{Status: string(target)}
			if opts.rescheduleDate != nil {
				payload.RescheduleDate = opts.rescheduleDate.Format(rescheduleDateLayout)
			}
			_, err := e.client.UpdateStatus(ctx, id, payload)
			return err
		}
	}
	if err := call(ctx); err != nil {
		return domain.ServiceRequest{}, err
	}

	from := rec.Status
	now := e.now()

	updated := rec.Clone()
	updated.Status = target
	updated.UpdatedAt = now
	updated.AppendHistory(target, now, opts.note)

	switch {
	case target == domain.StatusPostponed:
		updated.RescheduleDate = opts.rescheduleDate
	case action == domain.ActionApprove:
		updated.RescheduleDate = nil
	}

	e.agg.Replace(updated)
	e.log.TransitionApplied(id, string(action), string(from), string(target))

	evt := events.RequestTransitioned{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   updated.ID,
		ServiceType: string(updated.ServiceType),
		Action:      string(action),
		FromStatus:  string(from),
		ToStatus:    string(target),
		FarmerID:    updated.Farmer.ID,
		FarmerName:  updated.Farmer.Name,
		FarmerEmail: updated.Farmer.Email,
	}
	if updated.RescheduleDate != nil {
		evt.RescheduleDate = updated.RescheduleDate.Format(rescheduleDateLayout)
	}
	e.bus.Publish(ctx, evt)

	return updated, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func joinNote(base, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, extra)
}
