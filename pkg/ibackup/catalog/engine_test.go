package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/ibackup/internal/backuptest"
	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

const (
	pagesDomain = "AppDomain-com.apple.Pages"
	notesDomain = "AppDomain-com.apple.Notes"
)

// newCatalog writes a catalog under a temp device directory and returns an
// engine bound to it.
func newCatalog(t *testing.T, rows ...backuptest.Row) *catalog.Engine {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "device")
	dbPath := backuptest.WriteCatalog(t, dir, rows...)
	return catalog.New(dir, dbPath)
}

func fixtureRows() []backuptest.Row {
	return []backuptest.Row{
		backuptest.File(pagesDomain, "Documents/Report.pages", 10),
		backuptest.File(pagesDomain+"Extra", "Documents/Other.pages", 20),
		backuptest.File("AppDomainGroup-group.com.apple.Pages", "Library/shared.plist", 30),
		backuptest.File(notesDomain, "Documents/note.txt", 40),
		backuptest.File("HomeDomain", "Library/Preferences/com.apple.Pages.plist", 50),
		backuptest.Dir(pagesDomain, "Documents"),
		backuptest.Dir(notesDomain, "Documents"),
	}
}

func domains(records []catalog.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Domain)
	}
	return out
}

// drainWarnings counts buffered warning entries from the catalog logger.
func drainWarnings(ch <-chan logging.LogEntry) int {
	n := 0
	for {
		select {
		case e := <-ch:
			if e.Component == "catalog" && e.Level == logging.LevelWarn {
				n++
			}
		default:
			return n
		}
	}
}

func TestQueryUnbound(t *testing.T) {
	var zero catalog.Engine
	_, err := zero.Query(context.Background(), nil)
	assert.ErrorIs(t, err, catalog.ErrNotBound)

	var nilEngine *catalog.Engine
	_, err = nilEngine.Query(context.Background(), nil)
	assert.ErrorIs(t, err, catalog.ErrNotBound)
}

func TestQueryMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	engine := catalog.New(dir, filepath.Join(dir, "Manifest.db"))

	_, err := engine.Query(context.Background(), catalog.NewFilter())
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNotBound)

	_, statErr := os.Stat(filepath.Join(dir, "Manifest.db"))
	assert.True(t, os.IsNotExist(statErr), "read-only open must not create the database")
}

func TestQueryFilters(t *testing.T) {
	engine := newCatalog(t, fixtureRows()...)
	ctx := context.Background()

	tests := []struct {
		name string
		opts []catalog.Option
		want []string
	}{
		{
			name: "app matches domain exactly",
			opts: []catalog.Option{catalog.WithApp("com.apple.Pages")},
			want: []string{pagesDomain},
		},
		{
			name: "domain matches anywhere",
			opts: []catalog.Option{catalog.WithDomain("Pages")},
			want: []string{pagesDomain, pagesDomain + "Extra", "AppDomainGroup-group.com.apple.Pages"},
		},
		{
			name: "relative path matches anywhere",
			opts: []catalog.Option{catalog.WithRelativePath("com.apple.Pages")},
			want: []string{"HomeDomain"},
		},
		{
			name: "filters combine",
			opts: []catalog.Option{catalog.WithDomain("Pages"), catalog.WithRelativePath("Documents/")},
			want: []string{pagesDomain, pagesDomain + "Extra"},
		},
		{
			name: "directories",
			opts: []catalog.Option{catalog.WithFlag(catalog.FlagDirectory), catalog.WithRealPath(false)},
			want: []string{pagesDomain, notesDomain},
		},
		{
			name: "no match",
			opts: []catalog.Option{catalog.WithApp("com.example.Missing")},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := engine.Query(ctx, catalog.NewFilter(tt.opts...))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, domains(records))
		})
	}
}

func TestQueryAppDomainExact(t *testing.T) {
	engine := newCatalog(t, fixtureRows()...)

	records, err := engine.Query(context.Background(), catalog.NewFilter(catalog.WithApp("com.apple.Pages")))
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, r := range records {
		assert.Equal(t, pagesDomain, r.Domain)
		app, ok := r.App()
		assert.True(t, ok)
		assert.Equal(t, "com.apple.Pages", app)
	}
}

func TestQueryRealPath(t *testing.T) {
	engine := newCatalog(t, fixtureRows()...)

	records, err := engine.Query(context.Background(), catalog.NewFilter())
	require.NoError(t, err)
	require.Len(t, records, 5)

	for _, r := range records {
		want := filepath.Join(engine.DevicePath(), r.FileID[:2], r.FileID)
		assert.Equal(t, want, r.RealPath)
		assert.FileExists(t, r.RealPath)
		assert.Nil(t, r.Info)
	}
}

func TestQueryRealPathMissingAbortsBatch(t *testing.T) {
	rows := fixtureRows()
	missing := backuptest.File(notesDomain, "Documents/gone.txt", 1)
	missing.Content = nil
	engine := newCatalog(t, append(rows, missing)...)

	records, err := engine.Query(context.Background(), catalog.NewFilter())
	assert.Nil(t, records)
	require.ErrorIs(t, err, catalog.ErrFileMissing)

	var recErr *catalog.RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, missing.FileID, recErr.FileID)
	assert.Equal(t, notesDomain, recErr.Domain)
	assert.Equal(t, "Documents/gone.txt", recErr.RelativePath)

	records, err = engine.Query(context.Background(), catalog.NewFilter(catalog.WithRealPath(false)))
	require.NoError(t, err)
	assert.Len(t, records, 6)
}

func TestQueryRealPathOnDirectoriesWarnsOnce(t *testing.T) {
	engine := newCatalog(t, fixtureRows()...)

	ch := logging.Subscribe()
	defer logging.Unsubscribe(ch)
	drainWarnings(ch)

	records, err := engine.Query(context.Background(), catalog.NewFilter(catalog.WithFlag(catalog.FlagDirectory)))
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Empty(t, r.RealPath)
	}

	assert.Equal(t, 1, drainWarnings(ch))
}

func TestQueryDecodeInfo(t *testing.T) {
	blob, err := plist.Marshal(map[string]interface{}{"Size": 42}, plist.BinaryFormat)
	require.NoError(t, err)

	row := backuptest.Row{
		FileID:       "0011223344556677889900112233445566778899",
		Domain:       notesDomain,
		RelativePath: "Documents/note.txt",
		Flags:        catalog.FlagFile,
		Blob:         blob,
		Content:      []byte("hello"),
	}
	engine := newCatalog(t, row)

	records, err := engine.Query(context.Background(), catalog.NewFilter(
		catalog.WithDomain("Notes"),
		catalog.WithInfo(true),
	))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, int64(42), records[0].Info.Get("Size").Int(0))
	assert.Equal(t, int64(42), records[0].Size())
	assert.Equal(t, filepath.Join(engine.DevicePath(), "00", row.FileID), records[0].RealPath)
}

func TestQueryDecodeArchivedSize(t *testing.T) {
	engine := newCatalog(t, backuptest.File(notesDomain, "Documents/big.bin", 4096))

	records, err := engine.Query(context.Background(), catalog.NewFilter(catalog.WithInfo(true)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(4096), records[0].Size())
	assert.Equal(t, "NSKeyedArchiver", records[0].Info.Get("$archiver").String(""))
}

func TestQueryMalformedMetadata(t *testing.T) {
	bad := backuptest.File(notesDomain, "Documents/bad.txt", 1)
	bad.Blob = []byte("definitely not a plist")
	engine := newCatalog(t, bad)

	_, err := engine.Query(context.Background(), catalog.NewFilter(catalog.WithInfo(true)))
	require.ErrorIs(t, err, catalog.ErrMalformedMetadata)

	var recErr *catalog.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, bad.FileID, recErr.FileID)

	records, err := engine.Query(context.Background(), catalog.NewFilter())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestQueryEmptyTable(t *testing.T) {
	engine := newCatalog(t)

	records, err := engine.Query(context.Background(), catalog.NewFilter(
		catalog.WithApp(""),
		catalog.WithDomain(""),
		catalog.WithRelativePath(""),
		catalog.WithFlag(catalog.FlagFile),
	))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestQueryIdempotent(t *testing.T) {
	engine := newCatalog(t, fixtureRows()...)
	f := catalog.NewFilter(catalog.WithDomain("AppDomain"), catalog.WithInfo(true))

	first, err := engine.Query(context.Background(), f)
	require.NoError(t, err)
	second, err := engine.Query(context.Background(), f)
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
}

func TestQueryCanceledContext(t *testing.T) {
	engine := newCatalog(t, fixtureRows()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Query(ctx, catalog.NewFilter())
	assert.Error(t, err)
}

type memoryCache struct {
	rows  map[string][]catalog.Row
	snaps map[string]catalog.Snapshot
	hits  int
}

func (m *memoryCache) Snapshot(dbPath string) (catalog.Snapshot, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return catalog.Snapshot{Mtime: info.ModTime().UnixNano(), Size: info.Size()}, nil
}

func (m *memoryCache) Rows(dbPath, key string) ([]catalog.Row, bool) {
	rows, ok := m.rows[dbPath+"\x00"+key]
	if ok {
		m.hits++
	}
	return rows, ok
}

func (m *memoryCache) PutRows(dbPath, key string, snap catalog.Snapshot, rows []catalog.Row) error {
	m.rows[dbPath+"\x00"+key] = rows
	m.snaps[dbPath+"\x00"+key] = snap
	return nil
}

func TestQueryUsesRowCache(t *testing.T) {
	cache := &memoryCache{rows: map[string][]catalog.Row{}, snaps: map[string]catalog.Snapshot{}}
	engine := newCatalog(t, fixtureRows()...).WithCache(cache)
	f := catalog.NewFilter(catalog.WithApp("com.apple.Pages"))

	before, err := cache.Snapshot(engine.DBPath())
	require.NoError(t, err)

	first, err := engine.Query(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, before, cache.snaps[engine.DBPath()+"\x00"+f.Key()])

	require.NoError(t, os.Remove(engine.DBPath()))

	second, err := engine.Query(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)

	// Content files are still checked on a cache hit.
	require.NoError(t, os.Remove(first[0].RealPath))
	_, err = engine.Query(context.Background(), f)
	assert.ErrorIs(t, err, catalog.ErrFileMissing)
}
