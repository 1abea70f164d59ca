// Package storage contains object storage abstractions for version content.
// Implementations rely on streaming I/O only and never touch local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix namespaces every stored blob.
const KeyPrefix = "documents/"

var (
	// ErrObjectNotFound is returned by Get when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrPresignUnsupported is returned by backends that cannot mint download URLs.
	ErrPresignUnsupported = errors.New("presigned urls are not supported by this backend")
)

// PutObjectOptions describe an upload. Size is the exact byte count, or -1 when the
// length is unknown and the backend must chunk.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what a backend reports about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage holds version content. Every method streams; nothing is spooled to disk.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get fails with ErrObjectNotFound for an unknown key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that downloads the object without credentials.
	// A non-empty filename is served back in the Content-Disposition header.
	PresignGet(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

// VersionKey builds the blob key for a new version of documentID.
// Keys are unique even when two uploads share a filename.
func VersionKey(documentID, filename string) string {
	return KeyPrefix + documentID + "/" + uuid.NewString() + "-" + SafeName(filename)
}

// SafeName strips directories and characters that would break a key or a header.
func SafeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f, r == '"', r == '/':
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
