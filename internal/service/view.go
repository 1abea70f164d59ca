package service

import (
	"fmt"
	"time"

	"edms/internal/model"
	"edms/internal/workflow"
)

// VersionView is the serialized form of a version.
type VersionView struct {
	ID            int64     `json:"id"`
	DocumentID    string    `json:"document_id"`
	VersionNumber int       `json:"version_number"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	DownloadURL   string    `json:"download_url"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentView is the detail representation of a document for one actor.
type DocumentView struct {
	DocumentID     string            `json:"document_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Status         model.Status      `json:"status"`
	Priority       *string           `json:"priority"`
	Tags           []string          `json:"tags"`
	DocumentType   *string           `json:"document_type"`
	CreatedBy      string            `json:"created_by"`
	AssignedTo     string            `json:"assigned_to"`
	AssigneeID     string            `json:"assignee_id"`
	Reviewer       *string           `json:"reviewer"`
	ReviewerID     *string           `json:"reviewer_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ReviewNotes    string            `json:"review_notes"`
	ReviewDate     *time.Time        `json:"review_date"`
	Versions       []VersionView     `json:"versions"`
	AllowedActions []workflow.Action `json:"allowed_actions"`
}

// DocumentSummary is a row of a document listing.
type DocumentSummary struct {
	DocumentID   string       `json:"document_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       model.Status `json:"status"`
	Priority     *string      `json:"priority"`
	DocumentType *string      `json:"document_type"`
	Tags         []string     `json:"tags"`
	CreatedBy    string       `json:"created_by"`
	AssignedTo   string       `json:"assigned_to"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []DocumentSummary `json:"data"`
	Total int               `json:"total"`
}

// DownloadPath is the relative API path that serves a version's content.
func DownloadPath(versionID int64) string {
	return fmt.Sprintf("/versions/%d/download", versionID)
}

func newVersionView(v model.DocumentVersion) VersionView {
	return VersionView{
		ID:            v.ID,
		DocumentID:    v.DocumentID,
		VersionNumber: v.VersionNumber,
		Filename:      v.Filename,
		ContentType:   v.ContentType,
		Size:          v.Size,
		DownloadURL:   DownloadPath(v.ID),
		CreatedBy:     v.CreatedBy.Email,
		CreatedAt:     v.CreatedAt,
	}
}

func newVersionViews(vs []model.DocumentVersion) []VersionView {
	out := make([]VersionView, 0, len(vs))
	for _, v := range vs {
		out = append(out, newVersionView(v))
	}
	return out
}

func newDocumentView(d *model.Document, versions []model.DocumentVersion, actorID string) *DocumentView {
	v := &DocumentView{
		DocumentID:     d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Status:         d.Status,
		Priority:       optional(string(d.Priority)),
		Tags:           tagsOrEmpty(d.Tags),
		DocumentType:   optional(d.DocumentType),
		CreatedBy:      d.CreatedBy.Email,
		AssignedTo:     d.AssignedTo.Email,
		AssigneeID:     d.AssignedTo.ID,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ReviewNotes:    d.ReviewNotes,
		ReviewDate:     d.ReviewDate,
		Versions:       newVersionViews(versions),
		AllowedActions: workflow.AllowedActions(d, actorID),
	}
	if d.Reviewer != nil {
		v.Reviewer = &d.Reviewer.Email
		v.ReviewerID = &d.Reviewer.ID
	}
	return v
}

func newDocumentSummary(d model.Document) DocumentSummary {
	return DocumentSummary{
		DocumentID:   d.ID,
		Title:        d.Title,
		Description:  d.Description,
		Status:       d.Status,
		Priority:     optional(string(d.Priority)),
		DocumentType: optional(d.DocumentType),
		Tags:         tagsOrEmpty(d.Tags),
		CreatedBy:    d.CreatedBy.Email,
		AssignedTo:   d.AssignedTo.Email,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
