package device

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Usage is the on-disk footprint of one device backup.
type Usage struct {
	Files int64
	Bytes int64
}

// DiskUsage walks root/udid in parallel and totals regular file sizes.
// Unreadable entries are skipped.
func DiskUsage(ctx context.Context, root, udid string) (Usage, error) {
	var files, bytes atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, filepath.Join(root, udid), func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			log.Debug("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files.Add(1)
		bytes.Add(info.Size())
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return Usage{}, err
	}

	return Usage{Files: files.Load(), Bytes: bytes.Load()}, nil
}
