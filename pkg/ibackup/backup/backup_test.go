package backup_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/ibackup/internal/backuptest"
	"github.com/jamesainslie/ibackup/pkg/ibackup/backup"
	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	oldUDID = strings.Repeat("A", 25)
	newUDID = strings.Repeat("B", 40)
)

func writeBackup(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	backuptest.WriteDevice(t, root, backuptest.Phone(oldUDID, t1))

	phone := backuptest.Phone(newUDID, t1.Add(time.Hour))
	phone.InstalledApps = []string{"com.apple.Pages", "com.apple.Notes"}
	phone.Applications = map[string]map[string]interface{}{
		"com.apple.Pages": {"CFBundleIdentifier": "com.apple.Pages", "ContainerContentClass": "Data/Application"},
	}
	dir := backuptest.WriteDevice(t, root, phone)
	backuptest.WriteCatalog(t, dir,
		backuptest.File("AppDomain-com.apple.Pages", "Documents/Report.pages", 10),
		backuptest.File("AppDomain-com.apple.Notes", "Documents/note.txt", 20),
		backuptest.Dir("AppDomain-com.apple.Notes", "Documents"),
	)

	return root
}

func TestOpen(t *testing.T) {
	t.Run("explicit root", func(t *testing.T) {
		root := writeBackup(t)

		b, err := backup.Open(root)
		require.NoError(t, err)
		assert.Equal(t, root, b.Root)

		devices, err := b.Devices()
		require.NoError(t, err)
		assert.Len(t, devices, 2)
	})

	t.Run("missing root is a setup error", func(t *testing.T) {
		_, err := backup.Open(filepath.Join(t.TempDir(), "missing"))
		assert.ErrorIs(t, err, locator.ErrNotFound)
	})

	t.Run("empty root lists no devices", func(t *testing.T) {
		b, err := backup.Open(t.TempDir())
		require.NoError(t, err)

		devices, err := b.Devices()
		require.NoError(t, err)
		assert.Empty(t, devices)

		_, err = b.SetDevice("")
		assert.ErrorIs(t, err, device.ErrNoDevice)
	})
}

func TestSetDevice(t *testing.T) {
	root := writeBackup(t)
	b, err := backup.Open(root, backup.WithPredicate(device.LengthPredicate(25, 40)))
	require.NoError(t, err)

	active, err := b.SetDevice("")
	require.NoError(t, err)

	assert.Equal(t, newUDID, active.Device.UDID)
	assert.Equal(t, filepath.Join(root, newUDID), active.Path)
	assert.Equal(t, "Test iPhone", active.Manifest.Get("Lockdown", "DeviceName").String(""))
	assert.Equal(t, "finished", active.Status.Get("SnapshotState").String(""))
	assert.Equal(t, filepath.Join(root, newUDID, "Manifest.db"), active.Catalog.DBPath())

	require.Len(t, active.Apps, 2)
	assert.Equal(t, "Data/Application", active.Apps["com.apple.Pages"].Get("ContainerContentClass").String(""))
	assert.Equal(t, 0, active.Apps["com.apple.Notes"].Len())

	older, err := b.SetDevice(oldUDID)
	require.NoError(t, err)
	assert.Equal(t, oldUDID, older.Device.UDID)
	assert.Empty(t, older.Apps)
}

func TestActiveFiles(t *testing.T) {
	b, err := backup.Open(writeBackup(t))
	require.NoError(t, err)
	active, err := b.SetDevice(newUDID)
	require.NoError(t, err)

	files, err := active.Files(context.Background(), catalog.WithApp("com.apple.Notes"), catalog.WithInfo(true))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Documents/note.txt", files[0].RelativePath)
	assert.Equal(t, int64(20), files[0].Size())
	assert.FileExists(t, files[0].RealPath)

	dirs, err := active.Files(context.Background(), catalog.WithFlag(catalog.FlagDirectory), catalog.WithRealPath(false))
	require.NoError(t, err)
	assert.Len(t, dirs, 1)

	var none *backup.Active
	_, err = none.Files(context.Background())
	assert.ErrorIs(t, err, catalog.ErrNotBound)
}

func TestActiveFilesWithoutCatalog(t *testing.T) {
	b, err := backup.Open(writeBackup(t))
	require.NoError(t, err)

	active, err := b.SetDevice(oldUDID)
	require.NoError(t, err)

	_, err = active.Files(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNotBound)
}

func TestListApps(t *testing.T) {
	b, err := backup.Open(writeBackup(t))
	require.NoError(t, err)

	t.Run("installed applications preferred", func(t *testing.T) {
		active, err := b.SetDevice(newUDID)
		require.NoError(t, err)
		assert.Equal(t, []string{"com.apple.Pages", "com.apple.Notes"}, active.ListApps(nil))
	})

	t.Run("falls back to catalog domains", func(t *testing.T) {
		active, err := b.SetDevice(oldUDID)
		require.NoError(t, err)

		scan := []catalog.Record{
			{Domain: "AppDomain-com.example.b"},
			{Domain: "HomeDomain"},
			{Domain: "AppDomain-com.example.a"},
			{Domain: "AppDomain-com.example.b"},
			{Domain: "AppDomainGroup-group.com.example"},
		}
		assert.Equal(t, []string{"com.example.b", "com.example.a"}, active.ListApps(scan))
		assert.Empty(t, active.ListApps(nil))
	})
}

func TestOpenCatalog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "upload")
	dbPath := backuptest.WriteCatalog(t, dir,
		backuptest.File("AppDomain-com.apple.Pages", "Documents/a.pages", 3),
		backuptest.File("AppDomain-com.apple.Notes", "Documents/b.txt", 4),
	)

	active, err := backup.OpenCatalog(dbPath)
	require.NoError(t, err)
	assert.True(t, active.Device.Empty())

	scan, err := active.Files(context.Background(), catalog.WithRealPath(false))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"com.apple.Pages", "com.apple.Notes"}, active.ListApps(scan))

	_, err = backup.OpenCatalog(filepath.Join(dir, "nope.db"))
	assert.Error(t, err)
}
