// Package output renders ibackup results (devices, apps, catalog files and
// size trees) in the formats selectable with -o.
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"howett.net/plist"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/property"
	"github.com/jamesainslie/ibackup/pkg/ibackup/tree"
)

// Kind selects which section of a Result is rendered.
type Kind string

// Result kinds.
const (
	KindDevices Kind = "devices"
	KindApps    Kind = "apps"
	KindFiles   Kind = "files"
	KindTree    Kind = "tree"
)

// DeviceEntry is a device row. Usage fields are zero unless computed.
type DeviceEntry struct {
	device.Descriptor `yaml:",inline"`

	Active     bool   `json:"active" yaml:"active"`
	UsageFiles int64  `json:"usage_files,omitempty" yaml:"usage_files,omitempty"`
	UsageBytes int64  `json:"usage_bytes,omitempty" yaml:"usage_bytes,omitempty"`
	UsageHuman string `json:"usage_human,omitempty" yaml:"usage_human,omitempty"`
}

// FileEntry is a catalog record prepared for display.
type FileEntry struct {
	FileID       string                 `json:"fileID" yaml:"fileID"`
	Domain       string                 `json:"domain" yaml:"domain"`
	RelativePath string                 `json:"relativePath" yaml:"relativePath"`
	RealPath     string                 `json:"path,omitempty" yaml:"path,omitempty"`
	Size         int64                  `json:"size" yaml:"size"`
	SizeHuman    string                 `json:"size_human" yaml:"size_human"`
	Info         map[string]interface{} `json:"info,omitempty" yaml:"info,omitempty"`
}

// Result is everything a formatter can render.
type Result struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Source is the backup root or device directory the result came from.
	Source string `json:"source" yaml:"source"`

	Devices []DeviceEntry `json:"devices,omitempty" yaml:"devices,omitempty"`
	Apps    []string      `json:"apps,omitempty" yaml:"apps,omitempty"`
	Files   []FileEntry   `json:"files,omitempty" yaml:"files,omitempty"`
	Tree    *tree.Node    `json:"tree,omitempty" yaml:"tree,omitempty"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// TotalSize returns the sum of all file sizes in the result.
func (r *Result) TotalSize() int64 {
	if r.Kind == KindTree && r.Tree != nil {
		return r.Tree.Size
	}
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// Count returns the number of items in the rendered section.
func (r *Result) Count() int {
	switch r.Kind {
	case KindDevices:
		return len(r.Devices)
	case KindApps:
		return len(r.Apps)
	case KindTree:
		if r.Tree == nil {
			return 0
		}
		return r.Tree.Files
	default:
		return len(r.Files)
	}
}

// NewFileEntries converts catalog records for display.
func NewFileEntries(records []catalog.Record) []FileEntry {
	entries := make([]FileEntry, len(records))
	for i, r := range records {
		size := r.Size()
		entries[i] = FileEntry{
			FileID:       r.FileID,
			Domain:       r.Domain,
			RelativePath: r.RelativePath,
			RealPath:     r.RealPath,
			Size:         size,
			SizeHuman:    humanize.IBytes(uint64(size)),
		}
		if r.Info != nil {
			entries[i].Info = plainDict(r.Info)
		}
	}
	return entries
}

// NewDeviceEntries converts descriptors for display, marking activeUDID.
func NewDeviceEntries(devices []device.Descriptor, activeUDID string) []DeviceEntry {
	entries := make([]DeviceEntry, len(devices))
	for i, d := range devices {
		entries[i] = DeviceEntry{Descriptor: d, Active: d.UDID == activeUDID}
	}
	return entries
}

// SetUsage records the disk usage of a device entry.
func (e *DeviceEntry) SetUsage(u device.Usage) {
	e.UsageFiles = u.Files
	e.UsageBytes = u.Bytes
	e.UsageHuman = humanize.IBytes(uint64(u.Bytes))
}

// plainDict rewrites decoded property list values into types that encode
// cleanly as JSON and YAML: data becomes base64 and UIDs plain integers.
func plainDict(d property.Dict) map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return plainDict(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case plist.UID:
		return uint64(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns the names registered in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// flatten lists every node of a tree below its root in display order.
func flatten(root *tree.Node) []*tree.Node {
	var nodes []*tree.Node
	if root == nil {
		return nodes
	}
	root.Walk(func(n *tree.Node, depth int) bool {
		if depth > 0 {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}
