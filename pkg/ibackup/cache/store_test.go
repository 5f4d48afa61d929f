package cache

import (
	"errors"
	"testing"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreGetPut(t *testing.T) {
	store := openTestStore(t)

	entry := &Entry{
		Version: FormatVersion,
		Mtime:   1700000000,
		Size:    4096,
		Rows: []catalog.Row{
			{FileID: "ab12", Domain: "HomeDomain", RelativePath: "Library/a", Blob: []byte{1, 2, 3}},
			{FileID: "cd34", Domain: "HomeDomain", RelativePath: "Library/b"},
		},
	}

	if err := store.Put("/backup/x/Manifest.db", "flag=1", entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get("/backup/x/Manifest.db", "flag=1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Mtime != entry.Mtime || got.Size != entry.Size {
		t.Errorf("stamp mismatch: got %d/%d", got.Mtime, got.Size)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("Rows: got %d, want 2", len(got.Rows))
	}
	if string(got.Rows[0].Blob) != string([]byte{1, 2, 3}) {
		t.Errorf("Blob mismatch: %v", got.Rows[0].Blob)
	}
	if got.Rows[1].RelativePath != "Library/b" {
		t.Errorf("RelativePath mismatch: %q", got.Rows[1].RelativePath)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("/nonexistent", "flag=1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDeletePrefix(t *testing.T) {
	store := openTestStore(t)

	for _, k := range []struct{ db, key string }{
		{"/a/Manifest.db", "flag=1"},
		{"/a/Manifest.db", "flag=2"},
		{"/b/Manifest.db", "flag=1"},
	} {
		if err := store.Put(k.db, k.key, &Entry{Version: FormatVersion}); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeletePrefix(MakeKeyPrefix("/a/Manifest.db")); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}

	counts, err := store.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if counts["/a/Manifest.db"] != 0 {
		t.Errorf("expected /a entries removed, got %d", counts["/a/Manifest.db"])
	}
	if counts["/b/Manifest.db"] != 1 {
		t.Errorf("expected /b entry kept, got %d", counts["/b/Manifest.db"])
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key := MakeKey("/backup/udid/Manifest.db", "flag=1\x00app=com.apple.Notes")

	db, filter := ParseKey(key)
	if db != "/backup/udid/Manifest.db" {
		t.Errorf("dbPath: got %q", db)
	}
	if filter != "flag=1\x00app=com.apple.Notes" {
		t.Errorf("filterKey: got %q", filter)
	}

	if db, filter := ParseKey([]byte("plain")); db != "plain" || filter != "" {
		t.Errorf("ParseKey without separator: got %q %q", db, filter)
	}
}
