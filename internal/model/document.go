package model

import "time"

// Status is the workflow state of a document.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSigned   Status = "signed"
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the five defined states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSigned, StatusArchived:
		return true
	}
	return false
}

// Priority is an optional document priority. The zero value means absent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// MaxTitleLength is the maximum number of characters allowed in a title.
const MaxTitleLength = 128

// Document is the workflow-tracked record that owns an ordered list of versions.
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	Tags         []string   `json:"tags"`
	CreatedBy    UserRef    `json:"created_by"`
	AssignedTo   UserRef    `json:"assigned_to"`
	Reviewer     *UserRef   `json:"reviewer,omitempty"`
	ReviewNotes  string     `json:"review_notes,omitempty"`
	ReviewDate   *time.Time `json:"review_date,omitempty"`
	// LastVersionNumber is the high-water mark of version numbers ever assigned.
	LastVersionNumber int       `json:"last_version_number"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ReviewerID returns the reviewer's id or "" when no reviewer is set.
func (d *Document) ReviewerID() string {
	if d.Reviewer == nil {
		return ""
	}
	return d.Reviewer.ID
}
