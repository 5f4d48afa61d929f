package cache

import (
	"fmt"
	"os"
)

// Validator checks cached entries against the catalog on disk. A backup
// rewrites Manifest.db, so its mtime and size identify a snapshot.
type Validator struct {
	stat func(string) (os.FileInfo, error)
}

// NewValidator creates a validator that stats the real filesystem.
func NewValidator() *Validator {
	return &Validator{stat: os.Stat}
}

// Stamp returns the mtime and size recorded for dbPath.
func (v *Validator) Stamp(dbPath string) (mtime, size int64, err error) {
	info, err := v.stat(dbPath)
	if err != nil {
		return 0, 0, fmt.Errorf("stat catalog %s: %w", dbPath, err)
	}
	return info.ModTime().UnixNano(), info.Size(), nil
}

// Fresh reports whether entry still describes dbPath.
func (v *Validator) Fresh(dbPath string, entry *Entry) (bool, error) {
	if entry.Version != FormatVersion {
		return false, nil
	}

	mtime, size, err := v.Stamp(dbPath)
	if err != nil {
		return false, err
	}
	return entry.Mtime == mtime && entry.Size == size, nil
}
