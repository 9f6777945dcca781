package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lerlerchan/ExamOps-Orchestrator/diff"
)

// Format selects a report rendering.
type Format int

const (
	// FormatJSON renders the whole report as indented JSON
	FormatJSON Format = iota
	// FormatHTML renders a color-coded HTML page
	FormatHTML
	// FormatText renders the summary followed by a unified diff
	FormatText
)

// String returns the name of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatHTML:
		return "html"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// FileExtension returns the typical file extension for this format
func (f Format) FileExtension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatHTML:
		return ".html"
	default:
		return ".txt"
	}
}

// ParseFormat parses a format name as returned by String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "text", "txt", "diff":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("unknown report format %q", s)
	}
}

// Write renders r in format f to w.
func Write(r *Report, f Format, w io.Writer) error {
	switch f {
	case FormatJSON:
		return writeJSON(r, w)
	case FormatHTML:
		return writeHTML(r, w)
	case FormatText:
		return writeText(r, w)
	default:
		return fmt.Errorf("unsupported report format: %v", f)
	}
}

// WriteFile renders r in format f to filename.
func WriteFile(r *Report, f Format, filename string) error {
	out, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := Write(r, f, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// String renders r in format f.
func String(r *Report, f Format) (string, error) {
	var buf bytes.Buffer
	if err := Write(r, f, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// writeText writes the summary, the change list and the hunks of the
// report as a unified diff.
func writeText(r *Report, w io.Writer) error {
	var sb strings.Builder
	sb.WriteString(r.Summary)
	sb.WriteString("\n\n")
	for _, c := range r.Changes {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}

	if len(r.Hunks) > 0 {
		sb.WriteString("\n--- original\n+++ normalized\n")
	}
	for _, h := range r.Hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, e := range h.Entries {
			switch e.Kind {
			case diff.Equal:
				writeLine(&sb, ' ', e.Text)
			case diff.Delete:
				writeLine(&sb, '-', e.Text)
			case diff.Insert:
				writeLine(&sb, '+', e.Text)
			case diff.Replace:
				writeLine(&sb, '-', e.OldText)
				writeLine(&sb, '+', e.Text)
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeLine(sb *strings.Builder, prefix byte, text string) {
	sb.WriteByte(prefix)
	sb.WriteString(text)
	sb.WriteByte('\n')
}
