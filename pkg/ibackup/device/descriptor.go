// Package device reads per-device descriptor files from a backup root and
// selects which device backup to work with.
package device

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
	"github.com/jamesainslie/ibackup/pkg/ibackup/property"
)

// Descriptor file names found in every device backup directory.
const (
	ManifestPlist = "Manifest.plist"
	InfoPlist     = "Info.plist"
	StatusPlist   = "Status.plist"
	ManifestDB    = "Manifest.db"
)

var log = logging.Get("device")

// Descriptor summarizes one device backup. A descriptor is either fully
// populated or empty apart from UDID; see Empty.
type Descriptor struct {
	UDID         string    `json:"udid" yaml:"udid"`
	Name         string    `json:"name,omitempty" yaml:"name,omitempty"`
	IOSVersion   string    `json:"ios,omitempty" yaml:"ios,omitempty"`
	SerialNumber string    `json:"serial,omitempty" yaml:"serial,omitempty"`
	ProductType  string    `json:"type,omitempty" yaml:"type,omitempty"`
	Encrypted    bool      `json:"encrypted" yaml:"encrypted"`
	PasscodeSet  bool      `json:"passcodeSet" yaml:"passcodeSet"`
	BackupTime   time.Time `json:"date" yaml:"date"`
}

// Empty reports whether the descriptor could not be read. The UDID is kept
// so the backup directory stays identifiable.
func (d Descriptor) Empty() bool {
	return d.BackupTime.IsZero()
}

// LoadDescriptorFile reads and decodes devicePath/name. A missing or
// undecodable file is logged and yields an empty Dict; it never fails.
func LoadDescriptorFile(devicePath, name string) property.Dict {
	path := filepath.Join(devicePath, name)
	log.Debug("loading descriptor", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("descriptor not found", "path", path)
		} else {
			log.Warn("failed to read descriptor", "path", path, "error", err)
		}
		return property.Dict{}
	}

	dict, err := property.Decode(data)
	if err != nil {
		log.Warn("failed to decode descriptor", "path", path, "error", err)
		return property.Dict{}
	}
	return dict
}

// BuildDescriptor loads root/udid/Manifest.plist and extracts the device
// summary. The backup time is the manifest's modification time. Any missing
// field yields an empty descriptor.
func BuildDescriptor(root, udid string) Descriptor {
	devicePath := filepath.Join(root, udid)
	empty := Descriptor{UDID: udid}

	info, err := os.Stat(filepath.Join(devicePath, ManifestPlist))
	if err != nil {
		log.Warn("Manifest.plist not found", "udid", udid)
		return empty
	}

	manifest := LoadDescriptorFile(devicePath, ManifestPlist)
	lockdown := manifest.Get("Lockdown")

	d := Descriptor{UDID: udid, BackupTime: info.ModTime()}

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"DeviceName", &d.Name},
		{"ProductVersion", &d.IOSVersion},
		{"SerialNumber", &d.SerialNumber},
		{"ProductType", &d.ProductType},
	} {
		v := lockdown.Get(f.key)
		if v.Kind() != property.KindString {
			log.Warn("descriptor field missing", "udid", udid, "field", "Lockdown."+f.key)
			return empty
		}
		*f.dst = v.String("")
	}

	for _, f := range []struct {
		key string
		dst *bool
	}{
		{"IsEncrypted", &d.Encrypted},
		{"WasPasscodeSet", &d.PasscodeSet},
	} {
		v := manifest.Get(f.key)
		if v.Kind() != property.KindBool {
			log.Warn("descriptor field missing", "udid", udid, "field", f.key)
			return empty
		}
		*f.dst = v.Bool(false)
	}

	return d
}
