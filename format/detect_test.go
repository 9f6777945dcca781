package format

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// zipWith builds a ZIP archive holding the named parts.
func zipWith(t *testing.T, names ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		w.Write([]byte("<x/>"))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{DOCX, "DOCX"},
		{DOC, "DOC"},
		{ODT, "ODT"},
		{PDF, "PDF"},
		{XLSX, "XLSX"},
		{PPTX, "PPTX"},
		{Unknown, "Unknown"},
		{Format(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormat_Extension(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{DOCX, ".docx"},
		{DOC, ".doc"},
		{ODT, ".odt"},
		{PDF, ".pdf"},
		{XLSX, ".xlsx"},
		{PPTX, ".pptx"},
		{Unknown, ""},
	}

	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("Format(%d).Extension() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"paper.docx", DOCX},
		{"paper.DOCX", DOCX},
		{"paper.Docx", DOCX},
		{"paper.doc", DOC},
		{"paper.odt", ODT},
		{"paper.pdf", PDF},
		{"marks.xlsx", XLSX},
		{"slides.pptx", PPTX},
		{"paper.txt", Unknown},
		{"paper", Unknown},
		{"", Unknown},
		{"/path/to/file.docx", DOCX},
	}

	for _, tt := range tests {
		if got := Detect(tt.filename); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestDetectBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{
			name: "word archive",
			data: zipWith(t, "[Content_Types].xml", "_rels/.rels", "word/document.xml"),
			want: DOCX,
		},
		{
			name: "spreadsheet archive",
			data: zipWith(t, "[Content_Types].xml", "xl/workbook.xml"),
			want: XLSX,
		},
		{
			name: "presentation archive",
			data: zipWith(t, "[Content_Types].xml", "ppt/presentation.xml"),
			want: PPTX,
		},
		{
			name: "plain archive",
			data: zipWith(t, "notes.txt"),
			want: Unknown,
		},
		{
			name: "PDF",
			data: []byte("%PDF-1.4\n%%EOF"),
			want: PDF,
		},
		{
			name: "truncated ZIP",
			data: []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00, 0x00, 0x00},
			want: Unknown,
		},
		{
			name: "text file",
			data: []byte("Hello, World! This is plain text."),
			want: Unknown,
		},
		{
			name: "empty data",
			data: []byte{},
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectBytes(tt.data); got != tt.want {
				t.Errorf("DetectBytes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFile(t *testing.T) {
	dir := t.TempDir()

	docxPath := filepath.Join(dir, "paper.docx")
	os.WriteFile(docxPath, zipWith(t, "[Content_Types].xml", "word/document.xml"), 0644)

	format, err := DetectFile(docxPath)
	if err != nil {
		t.Fatalf("DetectFile() error = %v", err)
	}
	if format != DOCX {
		t.Errorf("DetectFile() = %v, want DOCX", format)
	}

	// A PDF renamed to .docx is still a PDF
	renamed := filepath.Join(dir, "renamed.docx")
	os.WriteFile(renamed, []byte("%PDF-1.7\n%%EOF"), 0644)
	if format, _ := DetectFile(renamed); format != PDF {
		t.Errorf("DetectFile(renamed) = %v, want PDF", format)
	}

	if _, err := DetectFile(filepath.Join(dir, "missing.docx")); err == nil {
		t.Error("DetectFile() should return error for a missing file")
	}
	if _, err := DetectFile(dir); err == nil {
		t.Error("DetectFile() should return error for a directory")
	}
}
