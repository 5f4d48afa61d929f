package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/ibackup/pkg/ibackup/tree"
)

// PrettyFormatter renders styled terminal output with lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	switch r.Kind {
	case KindDevices:
		w.WriteString(f.formatDevices(r))
	case KindApps:
		w.WriteString(f.formatApps(r))
	case KindTree:
		w.WriteString(f.formatTree(r.Tree))
	default:
		w.WriteString(f.formatFiles(r))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	title := TitleStyle.Render(string(r.Kind))
	source := LabelStyle.Render("Source:") + " " + ValueStyle.Render(r.Source)
	return HeaderBox.Render(title + "\n" + source)
}

func (f *PrettyFormatter) formatDevices(r *Result) string {
	if len(r.Devices) == 0 {
		return MutedStyle.Render("  No device backups found\n")
	}

	var sb strings.Builder
	for _, d := range r.Devices {
		marker := "  "
		if d.Active {
			marker = SuccessStyle.Render("* ")
		}

		if d.Empty() {
			sb.WriteString(fmt.Sprintf("%s%s  %s\n", marker, PathStyle.Render(d.UDID),
				WarningStyle.Render("unreadable backup")))
			continue
		}

		lock := ""
		if d.Encrypted {
			lock = WarningStyle.Render(" encrypted")
		}
		sb.WriteString(fmt.Sprintf("%s%s  %s\n", marker, TitleStyle.Render(d.Name), MutedStyle.Render(d.UDID)))
		sb.WriteString(fmt.Sprintf("    %s %s  %s %s  %s %s%s\n",
			LabelStyle.Render("iOS"), ValueStyle.Render(d.IOSVersion),
			LabelStyle.Render("model"), ValueStyle.Render(d.ProductType),
			LabelStyle.Render("backup"), ValueStyle.Render(formatAge(d.BackupTime)),
			lock))
		if d.UsageHuman != "" {
			sb.WriteString(fmt.Sprintf("    %s %s in %d files\n",
				LabelStyle.Render("size"), SizeStyle.Render(d.UsageHuman), d.UsageFiles))
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatApps(r *Result) string {
	if len(r.Apps) == 0 {
		return MutedStyle.Render("  No apps found\n")
	}

	var sb strings.Builder
	for _, a := range r.Apps {
		sb.WriteString("  " + PathStyle.Render(a) + "\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFiles(r *Result) string {
	if len(r.Files) == 0 {
		return MutedStyle.Render("  No files found matching criteria\n")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s\n", TableHeaderStyle.Render("    SIZE"), TableHeaderStyle.Render("PATH")))

	width := 8
	for _, file := range r.Files {
		if len(file.SizeHuman) > width {
			width = len(file.SizeHuman)
		}
	}

	for _, file := range r.Files {
		size := SizeStyle.Render(padLeft(file.SizeHuman, width))
		name := MutedStyle.Render(file.Domain+"/") + PathStyle.Render(file.RelativePath)
		sb.WriteString(fmt.Sprintf("  %s  %s\n", size, name))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatTree(root *tree.Node) string {
	if root == nil || len(root.Children) == 0 {
		return MutedStyle.Render("  Nothing to show\n")
	}

	var sb strings.Builder
	root.Walk(func(n *tree.Node, depth int) bool {
		indent := strings.Repeat("  ", depth)
		size := SizeStyle.Render(padLeft(humanize.IBytes(uint64(n.Size)), 10))

		name := PathStyle.Render(n.Name)
		if n.IsDir {
			name = DirStyle.Render(n.Name + "/")
		}
		if n.Truncated {
			name += MutedStyle.Render(fmt.Sprintf(" (%d files)", n.Files))
		}

		sb.WriteString(fmt.Sprintf("%s  %s%s\n", size, indent, name))
		return true
	})
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		LabelStyle.Render("Count:") + " " + ValueStyle.Render(fmt.Sprintf("%d", r.Count())),
	}

	if r.Kind == KindFiles || r.Kind == KindTree {
		total := humanize.IBytes(uint64(r.TotalSize()))
		parts = append(parts, LabelStyle.Render("Total:")+" "+SizeStyle.Render(total))
	}

	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// formatAge renders how long ago t was, or "never" for the zero time.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
