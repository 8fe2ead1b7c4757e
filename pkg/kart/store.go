// Package kart stores rendered videos in S3-compatible storage or on local disk.
package kart

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// Artifact describes a stored object.
type Artifact struct {
	Key          string            `json:"key"`    // e.g. "renders/<job_id>.mp4"
	Bucket       string            `json:"bucket"` // empty for local storage
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Store defines the interface for artifact storage operations.
type Store interface {
	// Upload stores reader under key. size may be -1 when unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (*Artifact, error)

	// Download opens an artifact. Returns ErrNotFound if the key is absent.
	Download(ctx context.Context, key string) (io.ReadCloser, *Artifact, error)

	// List lists all artifacts with the given prefix.
	List(ctx context.Context, prefix string) ([]*Artifact, error)

	// Delete removes an artifact by key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// EnsureBucket ensures the backing bucket or directory exists.
	EnsureBucket(ctx context.Context) error
}

const RenderPrefix = "renders/"

// RenderKey returns the storage key for a job's video.
func RenderKey(jobID, format string) string {
	return RenderPrefix + jobID + "." + strings.TrimPrefix(format, ".")
}

// ContentTypeFor maps a render output format to its MIME type.
func ContentTypeFor(format string) string {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "gif":
		return "image/gif"
	case "mov":
		return "video/quicktime"
	}
	return "application/octet-stream"
}

// validKey rejects keys that could escape the store root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	clean := path.Clean(key)
	return clean == key && !strings.HasPrefix(clean, "../") && clean != ".."
}
