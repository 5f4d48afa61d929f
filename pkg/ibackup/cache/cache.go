// Package cache memoizes catalog scans in a Badger store. Entries are
// keyed by catalog path and filter, and dropped once Manifest.db changes.
package cache

import (
	"errors"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
)

var log = logging.Get("cache")

// Cache provides catalog row caching for ibackup.
type Cache struct {
	store     *Store
	validator *Validator
}

var _ catalog.RowCache = (*Cache)(nil)

// Open opens or creates a cache at the given directory.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	return &Cache{
		store:     store,
		validator: NewValidator(),
	}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Rows returns the cached rows for a catalog scan when the catalog has not
// changed since they were stored. Stale entries are removed.
func (c *Cache) Rows(dbPath, filterKey string) ([]catalog.Row, bool) {
	entry, err := c.store.Get(dbPath, filterKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn("cache read failed", "db", dbPath, "error", err)
		}
		return nil, false
	}

	fresh, err := c.validator.Fresh(dbPath, entry)
	if err != nil || !fresh {
		log.Debug("dropping stale cache entry", "db", dbPath)
		if delErr := c.store.Delete(dbPath, filterKey); delErr != nil {
			log.Warn("cache delete failed", "db", dbPath, "error", delErr)
		}
		return nil, false
	}

	return entry.Rows, true
}

// Snapshot stamps the catalog's current mtime and size. Take it before
// scanning and hand it to PutRows.
func (c *Cache) Snapshot(dbPath string) (catalog.Snapshot, error) {
	mtime, size, err := c.validator.Stamp(dbPath)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return catalog.Snapshot{Mtime: mtime, Size: size}, nil
}

// PutRows stores the rows of a catalog scan under the snapshot taken
// before the scan started.
func (c *Cache) PutRows(dbPath, filterKey string, snap catalog.Snapshot, rows []catalog.Row) error {
	return c.store.Put(dbPath, filterKey, &Entry{
		Version: FormatVersion,
		Mtime:   snap.Mtime,
		Size:    snap.Size,
		Rows:    rows,
	})
}

// Clear removes all cached scans of one catalog.
func (c *Cache) Clear(dbPath string) error {
	return c.store.DeletePrefix(MakeKeyPrefix(dbPath))
}

// ClearAll removes all cached entries.
func (c *Cache) ClearAll() error {
	return c.store.DeletePrefix(nil)
}

// Stats returns the number of cached scans per catalog path.
func (c *Cache) Stats() (map[string]int, error) {
	return c.store.Keys()
}
