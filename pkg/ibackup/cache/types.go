package cache

import (
	"bytes"
	"encoding/gob"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
)

// FormatVersion is incremented when the entry encoding changes. Entries
// written with another version are treated as stale.
const FormatVersion = 1

// KeySeparator separates the catalog path from the filter key.
const KeySeparator = '\x00'

// Entry is the cached result of one catalog scan.
type Entry struct {
	Version int
	Mtime   int64 // Manifest.db modification time as UnixNano
	Size    int64 // Manifest.db size in bytes
	Rows    []catalog.Row
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes gob data into the entry.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey builds <dbPath>\x00<filterKey>.
func MakeKey(dbPath, filterKey string) []byte {
	return []byte(dbPath + string(KeySeparator) + filterKey)
}

// ParseKey splits a key into catalog path and filter key.
func ParseKey(key []byte) (dbPath, filterKey string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix shared by every key of one catalog.
func MakeKeyPrefix(dbPath string) []byte {
	return []byte(dbPath + string(KeySeparator))
}
