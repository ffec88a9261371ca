package filestore

import (
	"io"
	"strings"
	"time"

	"github.com/koustreak/gardien/internal/errs"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "exports/users.csv").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	ContentType  string
	ETag         string
	LastModified time.Time

	// IsDir is true when the entry represents a virtual directory (prefix),
	// not an actual stored object.
	IsDir bool
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to keys starting with it.
	Prefix string

	// Recursive lists every object under the prefix. When false, common
	// prefixes are returned once as IsDir entries.
	Recursive bool

	// Limit caps the number of results. 0 means no cap.
	Limit int
}

// ValidateKey rejects keys that are empty, absolute or escape their bucket.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return errs.Newf(errs.ErrKindInvalidInput, "invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return errs.Newf(errs.ErrKindInvalidInput, "invalid object key %q", key)
		}
	}
	return nil
}
