package output

import (
	"bytes"
)

// PathsFormatter writes one identifier per line: content paths for files
// (domain/relativePath when unresolved), UDIDs for devices, bundle IDs for
// apps and node paths for trees.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, line := range pathLines(r) {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	return nil
}

func pathLines(r *Result) []string {
	var lines []string
	switch r.Kind {
	case KindDevices:
		for _, d := range r.Devices {
			lines = append(lines, d.UDID)
		}
	case KindApps:
		lines = append(lines, r.Apps...)
	case KindTree:
		for _, n := range flatten(r.Tree) {
			lines = append(lines, n.Path)
		}
	default:
		for _, file := range r.Files {
			if file.RealPath != "" {
				lines = append(lines, file.RealPath)
			} else {
				lines = append(lines, file.Domain+"/"+file.RelativePath)
			}
		}
	}
	return lines
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

var _ Formatter = (*PathsFormatter)(nil)

// NullFormatter is PathsFormatter with NUL separators for xargs -0.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, line := range pathLines(r) {
		w.WriteString(line)
		w.WriteByte(0)
	}
	return nil
}

func init() {
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

var _ Formatter = (*NullFormatter)(nil)
