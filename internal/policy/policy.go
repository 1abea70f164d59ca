// Package policy resolves which roles an actor holds on a document.
package policy

import (
	"strings"

	"edms/internal/errs"
	"edms/internal/model"
)

// Role is a set of document roles. A user may hold several at once.
type Role uint8

const (
	Creator Role = 1 << iota
	Assignee
	Reviewer

	None Role = 0
)

// Any reports whether r shares at least one role with other.
func (r Role) Any(other Role) bool {
	return r&other != 0
}

func (r Role) String() string {
	if r == None {
		return "none"
	}
	var parts []string
	if r&Creator != 0 {
		parts = append(parts, "creator")
	}
	if r&Assignee != 0 {
		parts = append(parts, "assignee")
	}
	if r&Reviewer != 0 {
		parts = append(parts, "reviewer")
	}
	return strings.Join(parts, "|")
}

// RoleOf returns every role userID holds on doc.
func RoleOf(doc *model.Document, userID string) Role {
	if doc == nil || userID == "" {
		return None
	}
	r := None
	if doc.CreatedBy.ID == userID {
		r |= Creator
	}
	if doc.AssignedTo.ID == userID {
		r |= Assignee
	}
	if doc.ReviewerID() == userID {
		r |= Reviewer
	}
	return r
}

// Require returns a Forbidden error unless userID holds one of the required roles.
func Require(doc *model.Document, userID string, required Role) error {
	if RoleOf(doc, userID).Any(required) {
		return nil
	}
	return errs.Forbidden("actor must be %s of the document", required)
}

// RequireVisible hides the document entirely from actors without any of the
// required roles, so callers cannot tell it apart from a missing one.
func RequireVisible(doc *model.Document, userID string, required Role) error {
	if RoleOf(doc, userID).Any(required) {
		return nil
	}
	return errs.NotFound("document not found")
}
