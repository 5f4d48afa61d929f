// Package backuptest builds MobileSync backup fixtures on disk for tests.
package backuptest

import (
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"howett.net/plist"
	_ "modernc.org/sqlite"
)

// Device describes the descriptor files written for one device backup.
type Device struct {
	UDID         string
	Name         string
	IOSVersion   string
	SerialNumber string
	ProductType  string
	Encrypted    bool
	PasscodeSet  bool

	// ModTime is applied to Manifest.plist. Zero leaves the write time.
	ModTime time.Time

	// InstalledApps goes to Info.plist "Installed Applications".
	InstalledApps []string

	// Applications goes to Manifest.plist "Applications".
	Applications map[string]map[string]interface{}
}

// Phone returns a fully populated device with the given UDID.
func Phone(udid string, modTime time.Time) Device {
	return Device{
		UDID:         udid,
		Name:         "Test iPhone",
		IOSVersion:   "17.4.1",
		SerialNumber: "F2LXK0ABCDEF",
		ProductType:  "iPhone15,2",
		PasscodeSet:  true,
		ModTime:      modTime,
	}
}

// ManifestPlist returns the Manifest.plist contents for d.
func (d Device) ManifestPlist() map[string]interface{} {
	m := map[string]interface{}{
		"Lockdown": map[string]interface{}{
			"DeviceName":     d.Name,
			"ProductVersion": d.IOSVersion,
			"SerialNumber":   d.SerialNumber,
			"ProductType":    d.ProductType,
			"UniqueDeviceID": d.UDID,
		},
		"IsEncrypted":    d.Encrypted,
		"WasPasscodeSet": d.PasscodeSet,
		"Version":        "10.0",
	}
	if d.Applications != nil {
		apps := map[string]interface{}{}
		for id, info := range d.Applications {
			apps[id] = info
		}
		m["Applications"] = apps
	}
	return m
}

// WriteDevice writes Manifest.plist, Info.plist and Status.plist under
// root/d.UDID and returns the device directory.
func WriteDevice(t testing.TB, root string, d Device) string {
	t.Helper()

	dir := filepath.Join(root, d.UDID)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	apps := make([]interface{}, 0, len(d.InstalledApps))
	for _, a := range d.InstalledApps {
		apps = append(apps, a)
	}

	WritePlist(t, filepath.Join(dir, "Info.plist"), map[string]interface{}{
		"Device Name":            d.Name,
		"Installed Applications": apps,
	})
	WritePlist(t, filepath.Join(dir, "Status.plist"), map[string]interface{}{
		"IsFullBackup":  false,
		"SnapshotState": "finished",
	})

	manifest := filepath.Join(dir, "Manifest.plist")
	WritePlist(t, manifest, d.ManifestPlist())
	if !d.ModTime.IsZero() {
		require.NoError(t, os.Chtimes(manifest, d.ModTime, d.ModTime))
	}

	return dir
}

// WritePlist writes v as a binary property list.
func WritePlist(t testing.TB, path string, v interface{}) {
	t.Helper()

	data, err := plist.Marshal(v, plist.BinaryFormat)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// Row is one entry of the Files table.
type Row struct {
	FileID       string
	Domain       string
	RelativePath string
	Flags        int
	Blob         []byte

	// Content, when non-nil, is written to the hashed content path so
	// real-path resolution finds it.
	Content []byte
}

// File returns a flag-1 row with a generated file ID and a metadata blob
// recording size. The content file is written with size bytes.
func File(domain, relativePath string, size int) Row {
	return Row{
		FileID:       FileID(domain, relativePath),
		Domain:       domain,
		RelativePath: relativePath,
		Flags:        1,
		Blob:         MustBlob(int64(size)),
		Content:      make([]byte, size),
	}
}

// Dir returns a flag-2 row.
func Dir(domain, relativePath string) Row {
	return Row{
		FileID:       FileID(domain, relativePath),
		Domain:       domain,
		RelativePath: relativePath,
		Flags:        2,
		Blob:         MustBlob(0),
	}
}

// FileID derives the catalog identifier the way devices do: the SHA-1 of
// "domain-relativePath".
func FileID(domain, relativePath string) string {
	sum := sha1.Sum([]byte(domain + "-" + relativePath))
	return hex.EncodeToString(sum[:])
}

// MustBlob returns a keyed-archiver style metadata blob whose second
// object carries size.
func MustBlob(size int64) []byte {
	data, err := plist.Marshal(map[string]interface{}{
		"$archiver": "NSKeyedArchiver",
		"$version":  100000,
		"$top":      map[string]interface{}{"root": plist.UID(1)},
		"$objects": []interface{}{
			"$null",
			map[string]interface{}{
				"Size":         size,
				"Mode":         33188,
				"LastModified": 1700000000,
				"$class":       plist.UID(2),
			},
			map[string]interface{}{"$classname": "MBFile"},
		},
	}, plist.BinaryFormat)
	if err != nil {
		panic(err)
	}
	return data
}

const schema = `
CREATE TABLE Files (fileID TEXT PRIMARY KEY, domain TEXT, relativePath TEXT, flags INTEGER, file BLOB);
CREATE INDEX FilesDomainIdx ON Files(domain);
CREATE INDEX FilesRelativePathIdx ON Files(relativePath);
CREATE INDEX FilesFlagsIdx ON Files(flags);
CREATE TABLE Properties (key TEXT PRIMARY KEY, value BLOB);
`

// WriteCatalog creates devicePath/Manifest.db holding rows and writes each
// row's content file. It returns the database path.
func WriteCatalog(t testing.TB, devicePath string, rows ...Row) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(devicePath, 0o755))
	dbPath := filepath.Join(devicePath, "Manifest.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(schema)
	require.NoError(t, err)

	for _, r := range rows {
		_, err := db.Exec(
			`INSERT INTO Files (fileID, domain, relativePath, flags, file) VALUES (?, ?, ?, ?, ?)`,
			r.FileID, r.Domain, r.RelativePath, r.Flags, r.Blob,
		)
		require.NoError(t, err)

		if r.Content != nil {
			WriteContent(t, devicePath, r.FileID, r.Content)
		}
	}

	return dbPath
}

// WriteContent writes a content file at its hashed location.
func WriteContent(t testing.TB, devicePath, fileID string, content []byte) {
	t.Helper()

	dir := filepath.Join(devicePath, fileID[:2])
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileID), content, 0o644))
}
