// Package workflow is the document status state machine.
//
// Transitions are declared in a table keyed by (action, current status). Each
// row names the resulting status, the roles allowed to trigger it and the rule
// that picks the next assignee. Nothing outside this package mutates Status.
package workflow

import (
	"slices"

	"edms/internal/errs"
	"edms/internal/model"
	"edms/internal/policy"
)

// Action is a workflow command issued by an actor.
type Action string

const (
	Approve  Action = "approve"
	Reject   Action = "reject"
	ESign    Action = "esign"
	Archive  Action = "archive"
	Resubmit Action = "resubmit"
)

// Actions lists every known action.
var Actions = []Action{Approve, Reject, ESign, Archive, Resubmit}

// ParseAction converts a wire name into an Action. Unknown names are an invalid transition.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if slices.Contains(Actions, a) {
		return a, nil
	}
	return "", errs.InvalidTransition("unknown action %q", s)
}

// AssigneeRule decides who holds the document after a transition.
type AssigneeRule int

const (
	// RouteToCreator hands the document back to its creator.
	RouteToCreator AssigneeRule = iota
	// KeepAssignee leaves the assignee unchanged unless the request names a new one.
	KeepAssignee
)

// Transition is one row of the transition table.
type Transition struct {
	Action   Action
	From     model.Status
	To       model.Status
	Required policy.Role
	Assign   AssigneeRule
}

var transitions = []Transition{
	{Action: Approve, From: model.StatusPending, To: model.StatusApproved, Required: policy.Assignee, Assign: RouteToCreator},
	{Action: Reject, From: model.StatusPending, To: model.StatusRejected, Required: policy.Assignee, Assign: RouteToCreator},
	{Action: ESign, From: model.StatusApproved, To: model.StatusSigned, Required: policy.Assignee, Assign: RouteToCreator},
	{Action: Archive, From: model.StatusPending, To: model.StatusArchived, Required: policy.Assignee | policy.Creator, Assign: RouteToCreator},
	{Action: Archive, From: model.StatusApproved, To: model.StatusArchived, Required: policy.Assignee | policy.Creator, Assign: RouteToCreator},
	{Action: Archive, From: model.StatusRejected, To: model.StatusArchived, Required: policy.Creator, Assign: RouteToCreator},
	{Action: Archive, From: model.StatusSigned, To: model.StatusArchived, Required: policy.Assignee | policy.Creator, Assign: RouteToCreator},
	{Action: Resubmit, From: model.StatusRejected, To: model.StatusPending, Required: policy.Creator, Assign: KeepAssignee},
	{Action: Resubmit, From: model.StatusPending, To: model.StatusPending, Required: policy.Creator, Assign: KeepAssignee},
}

// Lookup returns the table row for action from status.
func Lookup(action Action, from model.Status) (Transition, bool) {
	for _, t := range transitions {
		if t.Action == action && t.From == from {
			return t, true
		}
	}
	return Transition{}, false
}

// Authorize checks that action is valid from doc's status and that actorID holds
// a role the transition requires. An invalid transition is reported before a
// missing role.
func Authorize(doc *model.Document, actorID string, action Action) (Transition, error) {
	t, ok := Lookup(action, doc.Status)
	if !ok {
		return Transition{}, errs.InvalidTransition("cannot %s a document that is %s", action, doc.Status)
	}
	if err := policy.Require(doc, actorID, t.Required); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// Request is a single apply call.
type Request struct {
	Action  Action
	ActorID string
	// NextAssignee optionally reassigns the document on transitions that keep the assignee.
	NextAssignee *model.UserRef
}

// Apply validates req against doc and mutates doc in place. doc is left untouched on error.
func Apply(doc *model.Document, req Request) (Transition, error) {
	t, err := Authorize(doc, req.ActorID, req.Action)
	if err != nil {
		return Transition{}, err
	}

	switch t.Assign {
	case RouteToCreator:
		if req.NextAssignee != nil {
			return Transition{}, errs.Validation("assignee cannot be chosen when the document returns to its creator")
		}
		doc.AssignedTo = doc.CreatedBy
	case KeepAssignee:
		if req.NextAssignee != nil {
			doc.AssignedTo = *req.NextAssignee
		}
	}
	doc.Status = t.To
	return t, nil
}

type allowedRule struct {
	statuses []model.Status
	role     policy.Role
	actions  []Action
}

// Evaluated top to bottom; the first match wins and later rules are not merged in.
var allowedRules = []allowedRule{
	{statuses: []model.Status{model.StatusPending}, role: policy.Assignee, actions: []Action{Approve, Reject, Archive}},
	{statuses: []model.Status{model.StatusApproved}, role: policy.Assignee, actions: []Action{ESign, Archive}},
	{statuses: []model.Status{model.StatusRejected, model.StatusPending}, role: policy.Creator, actions: []Action{Resubmit, Archive}},
	{statuses: []model.Status{model.StatusSigned}, role: policy.Assignee, actions: []Action{Archive}},
	{statuses: []model.Status{model.StatusApproved, model.StatusSigned}, role: policy.Creator, actions: []Action{Archive}},
}

// AllowedActions returns the actions the UI should offer actorID for doc.
// The result is never nil.
func AllowedActions(doc *model.Document, actorID string) []Action {
	role := policy.RoleOf(doc, actorID)
	if role == policy.None {
		return []Action{}
	}
	for _, r := range allowedRules {
		if slices.Contains(r.statuses, doc.Status) && role.Any(r.role) {
			return slices.Clone(r.actions)
		}
	}
	return []Action{}
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.Status) bool {
	for _, t := range transitions {
		if t.From == s {
			return false
		}
	}
	return true
}
