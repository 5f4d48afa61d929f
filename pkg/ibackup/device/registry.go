package device

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrNoDevice is returned by Select when the backup root holds no device
// backups.
var ErrNoDevice = errors.New("no device backup found")

// Predicate decides whether a subdirectory name of the backup root is a
// device backup.
type Predicate func(name string) bool

// AcceptAll treats every subdirectory as a device backup.
func AcceptAll(string) bool { return true }

// LengthPredicate accepts directory names with one of the given lengths.
// UDIDs are 40 characters on older devices and 25 on newer ones, so
// LengthPredicate(25, 40) skips unrelated folders.
func LengthPredicate(lengths ...int) Predicate {
	allowed := make(map[int]bool, len(lengths))
	for _, n := range lengths {
		allowed[n] = true
	}
	return func(name string) bool {
		return allowed[len(name)]
	}
}

// Registry enumerates device backups under Root.
type Registry struct {
	Root string

	// Accept filters subdirectory names. Nil accepts all.
	Accept Predicate
}

// NewRegistry returns a registry over root. A nil predicate accepts all.
func NewRegistry(root string, accept Predicate) *Registry {
	return &Registry{Root: root, Accept: accept}
}

// List returns a descriptor for every accepted subdirectory of Root in
// directory-read order. Unreadable devices appear as empty descriptors.
func (r *Registry) List() ([]Descriptor, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, fmt.Errorf("reading backup root %s: %w", r.Root, err)
	}

	accept := r.Accept
	if accept == nil {
		accept = AcceptAll
	}

	var devices []Descriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !accept(entry.Name()) {
			log.Debug("skipping directory", "name", entry.Name())
			continue
		}
		devices = append(devices, BuildDescriptor(r.Root, entry.Name()))
	}

	log.Debug("listed devices", "root", r.Root, "count", len(devices))
	return devices, nil
}

// Select lists the devices under Root and picks the active one; see
// SelectFrom.
func (r *Registry) Select(requested string) (Descriptor, error) {
	devices, err := r.List()
	if err != nil {
		return Descriptor{}, err
	}

	d, err := SelectFrom(devices, requested)
	if err != nil {
		log.Warn("no device backup found", "root", r.Root)
		return Descriptor{}, fmt.Errorf("%w in %s", err, r.Root)
	}
	return d, nil
}

// SelectFrom picks the active device from an existing listing. A requested
// UDID that exists wins. Otherwise a single device is used, or among several
// the one with the latest backup time; equal times resolve to the later
// directory.
func SelectFrom(devices []Descriptor, requested string) (Descriptor, error) {
	if requested != "" {
		for _, d := range devices {
			if d.UDID == requested {
				return d, nil
			}
		}
		log.Warn("requested device not found, selecting automatically", "udid", requested)
	}

	switch len(devices) {
	case 0:
		return Descriptor{}, ErrNoDevice
	case 1:
		return devices[0], nil
	}

	sorted := make([]Descriptor, len(devices))
	copy(sorted, devices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BackupTime.Before(sorted[j].BackupTime)
	})

	latest := sorted[len(sorted)-1]
	log.Debug("selected most recent device", "udid", latest.UDID, "date", latest.BackupTime)
	return latest, nil
}
