package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter formats the whole result as one indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per item, suitable for
// streaming through jq.
type JSONLFormatter struct{}

type jsonlApp struct {
	ID string `json:"id"`
}

type jsonlNode struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	Files int    `json:"files"`
}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	var items []interface{}
	switch r.Kind {
	case KindDevices:
		for _, d := range r.Devices {
			items = append(items, d)
		}
	case KindApps:
		for _, a := range r.Apps {
			items = append(items, jsonlApp{ID: a})
		}
	case KindTree:
		for _, n := range flatten(r.Tree) {
			items = append(items, jsonlNode{Path: n.Path, IsDir: n.IsDir, Size: n.Size, Files: n.Files})
		}
	default:
		for _, file := range r.Files {
			items = append(items, file)
		}
	}

	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
