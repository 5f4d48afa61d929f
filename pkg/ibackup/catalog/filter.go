package catalog

import (
	"fmt"
	"strings"
)

// Entry flags stored in the Files table.
const (
	FlagFile      = 1
	FlagDirectory = 2
	FlagSymlink   = 4
)

// AppDomainPrefix prefixes the catalog domain of every app container.
const AppDomainPrefix = "AppDomain-"

// AppDomain returns the catalog domain of an app bundle identifier.
func AppDomain(bundleID string) string {
	if bundleID == "" {
		return ""
	}
	return AppDomainPrefix + bundleID
}

// AppFromDomain extracts the bundle identifier from an app container domain.
func AppFromDomain(domain string) (string, bool) {
	if !strings.HasPrefix(domain, AppDomainPrefix) || len(domain) == len(AppDomainPrefix) {
		return "", false
	}
	return domain[len(AppDomainPrefix):], true
}

// Filter selects catalog entries. All set criteria must match.
type Filter struct {
	// App matches the app container domain exactly.
	App string

	// Domain matches anywhere in the domain.
	Domain string

	// RelativePath matches anywhere in the relative path.
	RelativePath string

	// Flag must equal the entry flag. Defaults to FlagFile.
	Flag int

	// RealPath resolves the on-disk content path of file entries.
	RealPath bool

	// Info decodes the metadata blob of every entry.
	Info bool
}

// Option configures a Filter.
type Option func(*Filter)

// NewFilter creates a filter with the given options applied over the
// defaults: files only, real paths resolved, metadata not decoded.
func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		Flag:     FlagFile,
		RealPath: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithApp restricts results to one app's container, e.g. "com.apple.Pages".
func WithApp(bundleID string) Option {
	return func(f *Filter) {
		f.App = bundleID
	}
}

// WithDomain restricts results to domains containing s.
func WithDomain(s string) Option {
	return func(f *Filter) {
		f.Domain = s
	}
}

// WithRelativePath restricts results to relative paths containing s.
func WithRelativePath(s string) Option {
	return func(f *Filter) {
		f.RelativePath = s
	}
}

// WithFlag selects the entry kind (FlagFile, FlagDirectory, FlagSymlink).
func WithFlag(flag int) Option {
	return func(f *Filter) {
		f.Flag = flag
	}
}

// WithRealPath toggles content path resolution.
func WithRealPath(enabled bool) Option {
	return func(f *Filter) {
		f.RealPath = enabled
	}
}

// WithInfo toggles metadata decoding.
func WithInfo(enabled bool) Option {
	return func(f *Filter) {
		f.Info = enabled
	}
}

// Key identifies the row set the filter selects. Resolution options do not
// change the rows and are not part of the key.
func (f *Filter) Key() string {
	return fmt.Sprintf("flag=%d\x00app=%s\x00domain=%s\x00path=%s", f.Flag, f.App, f.Domain, f.RelativePath)
}

func (f *Filter) sql() (string, []interface{}) {
	var b strings.Builder
	b.WriteString("SELECT fileID, domain, relativePath, file FROM Files WHERE flags = ?")
	args := []interface{}{f.Flag}

	if f.App != "" {
		b.WriteString(" AND domain = ?")
		args = append(args, AppDomain(f.App))
	}
	if f.Domain != "" {
		b.WriteString(" AND domain LIKE ?")
		args = append(args, "%"+f.Domain+"%")
	}
	if f.RelativePath != "" {
		b.WriteString(" AND relativePath LIKE ?")
		args = append(args, "%"+f.RelativePath+"%")
	}

	return b.String(), args
}
