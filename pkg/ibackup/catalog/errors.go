package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound is returned when querying an engine with no catalog.
	ErrNotBound = errors.New("catalog engine is not bound to a database")

	// ErrFileMissing is returned when a file entry's content is not at its
	// hashed location in the device backup.
	ErrFileMissing = errors.New("backup content file missing")

	// ErrMalformedMetadata is returned when an entry's metadata blob cannot
	// be decoded.
	ErrMalformedMetadata = errors.New("malformed file metadata")
)

// RecordError reports a resolution failure for one catalog entry.
type RecordError struct {
	FileID       string
	Domain       string
	RelativePath string
	Err          error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.FileID, e.Domain, e.RelativePath, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
