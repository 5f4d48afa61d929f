package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// rows returns the header and data cells shared by the tabular formatters.
func rows(r *Result) ([]string, [][]string) {
	switch r.Kind {
	case KindDevices:
		header := []string{"UDID", "NAME", "IOS", "TYPE", "ENCRYPTED", "DATE", "SIZE"}
		data := make([][]string, 0, len(r.Devices))
		for _, d := range r.Devices {
			date := ""
			if !d.Empty() {
				date = d.BackupTime.Format(time.DateTime)
			}
			data = append(data, []string{
				d.UDID, d.Name, d.IOSVersion, d.ProductType,
				strconv.FormatBool(d.Encrypted), date, d.UsageHuman,
			})
		}
		return header, data

	case KindApps:
		data := make([][]string, 0, len(r.Apps))
		for _, a := range r.Apps {
			data = append(data, []string{a})
		}
		return []string{"APP"}, data

	case KindTree:
		nodes := flatten(r.Tree)
		data := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			data = append(data, []string{
				strconv.FormatInt(n.Size, 10), strconv.Itoa(n.Files), n.Path,
			})
		}
		return []string{"SIZE", "FILES", "PATH"}, data

	default:
		data := make([][]string, 0, len(r.Files))
		for _, f := range r.Files {
			data = append(data, []string{f.SizeHuman, f.Domain, f.RelativePath, f.FileID})
		}
		return []string{"SIZE", "DOMAIN", "PATH", "FILEID"}, data
	}
}

// PlainFormatter writes an aligned table without colors, for scripts and
// pipes.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	header, data := rows(r)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range data {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)

// CSVFormatter writes RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	header, data := rows(r)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(data); err != nil {
		return err
	}

	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter writes a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	header, data := rows(r)

	writeMarkdownRow(w, header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	writeMarkdownRow(w, sep)

	for _, row := range data {
		writeMarkdownRow(w, row)
	}
	return nil
}

func writeMarkdownRow(w *bytes.Buffer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
