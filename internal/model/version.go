package model

import "time"

// DocumentVersion is an immutable snapshot of uploaded content.
// VersionNumber is unique within its parent document and starts at 1.
type DocumentVersion struct {
	ID            int64     `json:"id"`
	DocumentID    string    `json:"document_id"`
	VersionNumber int       `json:"version_number"`
	Filename      string    `json:"filename"`
	StoragePath   string    `json:"storage_path"`
	Size          int64     `json:"size"`
	ContentType   string    `json:"content_type"`
	CreatedBy     UserRef   `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
