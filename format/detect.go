// Package format detects the container format of an input document before
// it is handed to a decoder.
package format

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format represents a document format an exam paper may arrive in. Only
// DOCX can be decoded; the others are recognised so that callers can say
// what they got.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// DOCX indicates a Microsoft Word (.docx) document.
	DOCX
	// DOC indicates a legacy binary Word (.doc) document.
	DOC
	// ODT indicates an OpenDocument Text (.odt) document.
	ODT
	// PDF indicates a PDF document.
	PDF
	// XLSX indicates a Microsoft Excel (.xlsx) document.
	XLSX
	// PPTX indicates a Microsoft PowerPoint (.pptx) document.
	PPTX
)

// MIME types reported by mimetype for the formats above.
const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC  = "application/msword"
	mimeODT  = "application/vnd.oasis.opendocument.text"
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeZIP  = "application/zip"
)

var byMIME = []struct {
	mime   string
	format Format
}{
	{mimeDOCX, DOCX},
	{mimeDOC, DOC},
	{mimeODT, ODT},
	{mimePDF, PDF},
	{mimeXLSX, XLSX},
	{mimePPTX, PPTX},
}

// headSize is how much of a file is sniffed. It matches mimetype's default
// read limit.
const headSize = 3072

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case DOCX:
		return "DOCX"
	case DOC:
		return "DOC"
	case ODT:
		return "ODT"
	case PDF:
		return "PDF"
	case XLSX:
		return "XLSX"
	case PPTX:
		return "PPTX"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case DOCX:
		return ".docx"
	case DOC:
		return ".doc"
	case ODT:
		return ".odt"
	case PDF:
		return ".pdf"
	case XLSX:
		return ".xlsx"
	case PPTX:
		return ".pptx"
	default:
		return ""
	}
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return DOCX
	case ".doc":
		return DOC
	case ".odt":
		return ODT
	case ".pdf":
		return PDF
	case ".xlsx":
		return XLSX
	case ".pptx":
		return PPTX
	default:
		return Unknown
	}
}

// DetectBytes determines the format from content. ZIP archives that
// mimetype cannot classify from their first entries are opened and
// inspected.
func DetectBytes(data []byte) Format {
	f, err := DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Unknown
	}
	return f
}

// DetectFile determines the format of a file from its content. The
// extension is not consulted: a renamed or truncated file reports what it
// really holds.
func DetectFile(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return Unknown, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Unknown, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Unknown, fmt.Errorf("%s is a directory", path)
	}
	return DetectFromReader(file, info.Size())
}

// DetectFromReader inspects the content to determine format.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	head := make([]byte, min(size, headSize))
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}

	mt := mimetype.Detect(head[:n])
	for _, m := range byMIME {
		if mt.Is(m.mime) {
			return m.format, nil
		}
	}
	if isZIP(mt) {
		return detectZIPFormat(r, size), nil
	}
	return Unknown, nil
}

// isZIP reports whether mt is a ZIP archive or a format derived from one.
func isZIP(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(mimeZIP) {
			return true
		}
	}
	return false
}

// detectZIPFormat inspects a ZIP archive to determine if it's DOCX, XLSX,
// PPTX or ODT. An archive that cannot be read is Unknown.
func detectZIPFormat(r io.ReaderAt, size int64) Format {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown
	}

	// Check for OpenDocument Format first (has mimetype file at the start)
	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		data, _ := io.ReadAll(io.LimitReader(rc, 256))
		rc.Close()
		if strings.Contains(string(data), mimeODT) {
			return ODT
		}
	}

	// Check for Office Open XML markers
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			return DOCX
		case strings.HasPrefix(f.Name, "xl/"):
			return XLSX
		case strings.HasPrefix(f.Name, "ppt/"):
			return PPTX
		}
	}

	return Unknown
}
