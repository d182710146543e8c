package domain

import (
	"fmt"

	"farmlink_backend/platform/apperr"
)

// Action is a user-initiated operation on a request.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionReschedule Action = "reschedule"
)

// Target returns the status an action moves a record into.
func (a Action) Target() Status {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionStart:
		return StatusInProgress
	case ActionComplete:
		return StatusCompleted
	case ActionReschedule:
		return StatusPostponed
	default:
		return StatusPending
	}
}

// ruleSet is the transition table for one service type: which actions are
// enabled from each status. One table per type replaces per-call-site
// conditionals keyed on the type.
type ruleSet struct {
	allowed map[Status][]Action
	// requiresStart marks types whose field work must be explicitly
	// started before it can be completed.
	requiresStart bool
}

var fieldWorkRules = ruleSet{
	requiresStart: true,
	allowed: map[Status][]Action{
		StatusPending:    {ActionApprove, ActionReject},
		StatusApproved:   {ActionStart, ActionReschedule},
		StatusInProgress: {ActionComplete},
		StatusPostponed:  {ActionApprove},
	},
}

var evaluationRules = ruleSet{
	allowed: map[Status][]Action{
		// Reschedule while pending is a distinct path: the visit date is
		// carried but the record moves pending -> postponed.
		StatusPending:   {ActionApprove, ActionReject, ActionReschedule},
		StatusApproved:  {ActionComplete, ActionReschedule},
		StatusPostponed: {ActionApprove},
	},
}

var regularRules = ruleSet{
	allowed: map[Status][]Action{
		StatusPending:    {ActionApprove, ActionReject},
		StatusApproved:   {ActionComplete, ActionReschedule},
		StatusInProgress: {ActionComplete},
		StatusPostponed:  {ActionApprove},
	},
}

var typeRules = map[ServiceType]ruleSet{
	TypeHarvest:            fieldWorkRules,
	TypePestManagement:     fieldWorkRules,
	TypePropertyEvaluation: evaluationRules,
	TypeUnknown:            regularRules,
}

// RequiresStart reports whether the type demands an explicit start action
// before completion.
func RequiresStart(t ServiceType) bool {
	return rulesFor(t).requiresStart
}

func rulesFor(t ServiceType) ruleSet {
	if rs, ok := typeRules[t]; ok {
		return rs
	}
	return regularRules
}

// CanTransition validates that the action is enabled for the given type and
// current status. It returns the target status on success and an
// InvalidTransition error otherwise. Terminal statuses admit no actions.
func CanTransition(t ServiceType, from Status, action Action) (Status, error) {
	if from.IsTerminal() {
		return "", apperr.InvalidTransition(
			fmt.Sprintf("request is %s and can no longer be modified", from))
	}

	rs := rulesFor(t)
	for _, enabled := range rs.allowed[from] {
		if enabled == action {
			return action.Target(), nil
		}
	}

	if action == ActionComplete && rs.requiresStart {
		return "", apperr.InvalidTransition(
			fmt.Sprintf("%s requests must be started before completing", t.Label()))
	}
	if action == ActionReject && from != StatusPending {
		return "", apperr.InvalidTransition(
			fmt.Sprintf("cannot reject a request that is already %s; reschedule or cancel instead", from))
	}

	return "", apperr.InvalidTransition(
		fmt.Sprintf("action %q is not permitted from status %q", action, from))
}
