package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/property"
)

// Active is the selected device backup. Callers pass it explicitly; there
// is no process-wide current device.
type Active struct {
	Device device.Descriptor
	Path   string

	Manifest property.Dict
	Info     property.Dict
	Status   property.Dict

	// Apps maps installed bundle identifiers to their Manifest.plist
	// Applications metadata (empty when absent).
	Apps map[string]property.Dict

	Catalog *catalog.Engine
}

// OpenCatalog wraps a lone Manifest.db with no descriptor files. Content
// files are resolved next to it, so real paths only work when the device
// directory is intact.
func OpenCatalog(dbPath string) (*Active, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("opening catalog: %s is a directory", dbPath)
	}

	dir := filepath.Dir(dbPath)
	return &Active{
		Device:   device.Descriptor{UDID: filepath.Base(dir)},
		Path:     dir,
		Manifest: property.Dict{},
		Info:     property.Dict{},
		Status:   property.Dict{},
		Apps:     map[string]property.Dict{},
		Catalog:  catalog.New(dir, dbPath),
	}, nil
}

// Files queries the device catalog. Options default to files only with
// real paths resolved.
func (a *Active) Files(ctx context.Context, opts ...catalog.Option) ([]catalog.Record, error) {
	if a == nil {
		return nil, catalog.ErrNotBound
	}
	return a.Catalog.Query(ctx, catalog.NewFilter(opts...))
}

// ListApps returns the installed application identifiers from Info.plist.
// When that list is missing or empty, identifiers are derived from the
// AppDomain- domains of scan in first-seen order.
func (a *Active) ListApps(scan []catalog.Record) []string {
	if installed := a.Info.Get("Installed Applications").Strings(); len(installed) > 0 {
		return installed
	}

	log.Debug("no installed application list, deriving from catalog domains")

	seen := make(map[string]bool)
	var apps []string
	for _, r := range scan {
		app, ok := r.App()
		if !ok || seen[app] {
			continue
		}
		seen[app] = true
		apps = append(apps, app)
	}
	return apps
}

func buildAppRegistry(info, manifest property.Dict) map[string]property.Dict {
	installed := info.Get("Installed Applications").Strings()
	meta := manifest.Get("Applications")

	apps := make(map[string]property.Dict, len(installed))
	for _, id := range installed {
		apps[id] = meta.Get(id).Dict()
	}
	return apps
}
