// Package catalog queries a device backup's Manifest.db and resolves each
// entry to its content file and decoded metadata.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
	"github.com/jamesainslie/ibackup/pkg/ibackup/property"
)

var log = logging.Get("catalog")

// Snapshot identifies one state of a catalog database on disk.
type Snapshot struct {
	Mtime int64
	Size  int64
}

// RowCache memoizes raw rows per database and filter key. Rows are stored
// under the snapshot taken before the scan that produced them, so a
// database rewritten mid-scan leaves a stale entry.
type RowCache interface {
	Snapshot(dbPath string) (Snapshot, error)
	Rows(dbPath, key string) ([]Row, bool)
	PutRows(dbPath, key string, snap Snapshot, rows []Row) error
}

// Engine runs filtered queries against one device catalog. The zero Engine
// is unbound and every query fails with ErrNotBound.
type Engine struct {
	devicePath string
	dbPath     string
	cache      RowCache
}

// New binds an engine to a catalog database. The database is opened per
// query, so it need not exist yet.
func New(devicePath, dbPath string) *Engine {
	return &Engine{devicePath: devicePath, dbPath: dbPath}
}

// WithCache returns a copy of the engine that reads rows through c.
func (e *Engine) WithCache(c RowCache) *Engine {
	cp := *e
	cp.cache = c
	return &cp
}

// Bound reports whether the engine has a catalog database.
func (e *Engine) Bound() bool {
	return e != nil && e.dbPath != ""
}

// DBPath returns the catalog database path.
func (e *Engine) DBPath() string {
	if e == nil {
		return ""
	}
	return e.dbPath
}

// DevicePath returns the directory holding the content files.
func (e *Engine) DevicePath() string {
	if e == nil {
		return ""
	}
	return e.devicePath
}

// Query returns the entries matching f in storage order. A nil f uses
// NewFilter defaults.
//
// Resolution is all or nothing: the first entry whose content file is
// missing or whose metadata does not decode aborts the query with a
// *RecordError wrapping ErrFileMissing or ErrMalformedMetadata.
func (e *Engine) Query(ctx context.Context, f *Filter) ([]Record, error) {
	if !e.Bound() {
		return nil, ErrNotBound
	}
	if f == nil {
		f = NewFilter()
	}

	rows, err := e.rows(ctx, f)
	if err != nil {
		return nil, err
	}

	resolvePaths := f.RealPath && f.Flag == FlagFile
	if f.RealPath && f.Flag != FlagFile {
		log.Warn("real path resolution only applies to file entries, skipping", "flag", f.Flag)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := Record{
			FileID:       row.FileID,
			Domain:       row.Domain,
			RelativePath: row.RelativePath,
		}

		if resolvePaths {
			path, err := e.contentPath(row.FileID)
			if err != nil {
				return nil, recordError(row, err)
			}
			rec.RealPath = path
		}

		if f.Info {
			info, err := property.Decode(row.Blob)
			if err != nil {
				return nil, recordError(row, fmt.Errorf("%w: %w", ErrMalformedMetadata, err))
			}
			rec.Info = info
		}

		records = append(records, rec)
	}

	return records, nil
}

func (e *Engine) rows(ctx context.Context, f *Filter) ([]Row, error) {
	key := f.Key()
	if e.cache != nil {
		if rows, ok := e.cache.Rows(e.dbPath, key); ok {
			log.Debug("catalog rows from cache", "db", e.dbPath, "count", len(rows))
			return rows, nil
		}
	}

	var (
		snap    Snapshot
		snapErr error
	)
	if e.cache != nil {
		snap, snapErr = e.cache.Snapshot(e.dbPath)
	}

	rows, err := e.scan(ctx, f)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if snapErr != nil {
			log.Debug("catalog not cached", "db", e.dbPath, "error", snapErr)
		} else if err := e.cache.PutRows(e.dbPath, key, snap, rows); err != nil {
			log.Warn("failed to cache catalog rows", "db", e.dbPath, "error", err)
		}
	}
	return rows, nil
}

func (e *Engine) scan(ctx context.Context, f *Filter) ([]Row, error) {
	db, err := sql.Open("sqlite", readOnlyDSN(e.dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", e.dbPath, err)
	}
	defer db.Close()

	query, args := f.sql()
	log.Debug("querying catalog", "db", e.dbPath, "query", query, "args", args)

	result, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog %s: %w", e.dbPath, err)
	}
	defer result.Close()

	var rows []Row
	for result.Next() {
		var r Row
		var domain, relativePath sql.NullString
		if err := result.Scan(&r.FileID, &domain, &relativePath, &r.Blob); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		r.Domain = domain.String
		r.RelativePath = relativePath.String
		rows = append(rows, r)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog rows: %w", err)
	}

	return rows, nil
}

// contentPath returns devicePath/<first two chars of id>/<id>, which must be
// a regular file.
func (e *Engine) contentPath(fileID string) (string, error) {
	if len(fileID) < 2 {
		return "", fmt.Errorf("%w: invalid file id %q", ErrFileMissing, fileID)
	}

	path := filepath.Join(e.devicePath, fileID[:2], fileID)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrFileMissing, path)
	}
	return path, nil
}

func recordError(row Row, err error) *RecordError {
	return &RecordError{
		FileID:       row.FileID,
		Domain:       row.Domain,
		RelativePath: row.RelativePath,
		Err:          err,
	}
}

// readOnlyDSN builds a SQLite URI that opens path without write access.
func readOnlyDSN(path string) string {
	p := filepath.ToSlash(path)
	if filepath.VolumeName(path) != "" {
		p = "/" + p
	}
	p = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(p)
	return "file:" + p + "?mode=ro"
}
