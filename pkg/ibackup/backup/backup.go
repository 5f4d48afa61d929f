// Package backup ties the locator, device registry and catalog engine into
// a session over one backup root.
//
//	b, err := backup.Open("")
//	if err != nil {
//	    return err // root could not be resolved
//	}
//	active, err := b.SetDevice("")
//	if errors.Is(err, device.ErrNoDevice) {
//	    return nil // nothing to show
//	}
//	files, err := active.Files(ctx, catalog.WithApp("com.apple.Pages"))
package backup

import (
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/locator"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
)

var log = logging.Get("backup")

// Option configures Open.
type Option func(*options)

type options struct {
	accept device.Predicate
	cache  catalog.RowCache
}

// WithPredicate sets which subdirectories of the root count as devices.
func WithPredicate(p device.Predicate) Option {
	return func(o *options) {
		o.accept = p
	}
}

// WithCache makes catalog engines read rows through c.
func WithCache(c catalog.RowCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// Backup is an opened backup root.
type Backup struct {
	Root     string
	Registry *device.Registry

	cache catalog.RowCache
}

// Open resolves the backup root (the platform default when path is empty)
// and prepares the device registry. Resolution failures are returned as
// locator errors.
func Open(path string, opts ...Option) (*Backup, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	root, err := locator.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("resolving backup root: %w", err)
	}

	log.Debug("opened backup root", "root", root)
	return &Backup{
		Root:     root,
		Registry: device.NewRegistry(root, o.accept),
		cache:    o.cache,
	}, nil
}

// Devices lists the device backups under the root.
func (b *Backup) Devices() ([]device.Descriptor, error) {
	return b.Registry.List()
}

// SetDevice selects a device (see device.Registry.Select) and loads its
// descriptors, app registry and catalog engine.
func (b *Backup) SetDevice(udid string) (*Active, error) {
	d, err := b.Registry.Select(udid)
	if err != nil {
		return nil, err
	}

	devicePath := filepath.Join(b.Root, d.UDID)
	log.Debug("device backup path", "path", devicePath)

	a := &Active{
		Device:   d,
		Path:     devicePath,
		Manifest: device.LoadDescriptorFile(devicePath, device.ManifestPlist),
		Info:     device.LoadDescriptorFile(devicePath, device.InfoPlist),
		Status:   device.LoadDescriptorFile(devicePath, device.StatusPlist),
	}
	a.Apps = buildAppRegistry(a.Info, a.Manifest)

	engine := catalog.New(devicePath, filepath.Join(devicePath, device.ManifestDB))
	if b.cache != nil {
		engine = engine.WithCache(b.cache)
	}
	a.Catalog = engine

	return a, nil
}
