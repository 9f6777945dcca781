// Package docx decodes exam papers stored as DOCX (Office Open XML) files
// into model documents.
//
// The body is streamed in document order. Every paragraph becomes one
// block; a table becomes a single block whose cells are joined with " | "
// and whose rows are joined with " / ". Equations, drawings, VML pictures,
// OLE objects, complex fields and charts are recorded as inline objects so
// the math guard can protect the block. The page setup is read from the
// first section.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// maxPartSize caps how much of a single archive part is read.
const maxPartSize = 64 << 20

// Reader provides access to DOCX document content.
type Reader struct {
	closer    io.Closer
	zipReader *zip.Reader
	rels      *relationshipsXML
	coreProps *corePropertiesXML
	appProps  *appPropertiesXML
	blocks    []model.Block
	section   model.Section
}

// Open opens a DOCX file for reading.
func Open(filename string) (*Reader, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}

	r, err := newReader(&zr.Reader)
	if err != nil {
		zr.Close()
		return nil, err
	}
	r.closer = zr
	return r, nil
}

// OpenBytes decodes a DOCX file held in memory.
func OpenBytes(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}
	return newReader(zr)
}

func newReader(zr *zip.Reader) (*Reader, error) {
	r := &Reader{zipReader: zr}

	// Validate required files exist
	if err := r.validate(); err != nil {
		return nil, err
	}

	// Relationships are needed to resolve images and header parts
	if err := r.parseRelationships(); err != nil {
		return nil, fmt.Errorf("parsing relationships: %w", err)
	}

	sect, err := r.parseDocument()
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if err := r.parseSection(sect); err != nil {
		return nil, fmt.Errorf("parsing section: %w", err)
	}

	// Metadata is optional
	r.parseCoreProperties()
	r.parseAppProperties()

	return r, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// validate checks that required DOCX files exist.
func (r *Reader) validate() error {
	required := []string{
		"[Content_Types].xml",
		"word/document.xml",
	}

	fileMap := make(map[string]bool)
	for _, f := range r.zipReader.File {
		fileMap[f.Name] = true
	}

	for _, name := range required {
		if !fileMap[name] {
			return fmt.Errorf("missing required file: %s", name)
		}
	}

	return nil
}

// getFileContent reads the content of a file from the ZIP archive.
func (r *Reader) getFileContent(name string) ([]byte, error) {
	f := r.getFile(name)
	if f == nil {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("part %s exceeds %d bytes", name, maxPartSize)
	}
	return data, nil
}

// getFile returns a zip.File by name.
func (r *Reader) getFile(name string) *zip.File {
	for _, f := range r.zipReader.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Document returns a model.Document representation of the DOCX content.
// Each call returns a fresh copy.
func (r *Reader) Document() (*model.Document, error) {
	doc := model.NewDocument()
	doc.Metadata = r.Metadata()
	doc.Section = r.section
	doc.Blocks = append(doc.Blocks, model.CloneBlocks(r.blocks)...)
	return doc, nil
}

// Metadata returns document metadata.
func (r *Reader) Metadata() model.Metadata {
	meta := model.Metadata{Custom: make(map[string]string)}
	if r.coreProps != nil {
		meta.Title = strings.TrimSpace(r.coreProps.Title)
		meta.Author = strings.TrimSpace(r.coreProps.Creator)
		meta.Subject = strings.TrimSpace(r.coreProps.Subject)
		setCustom(meta.Custom, "keywords", r.coreProps.Keywords)
		setCustom(meta.Custom, "last_modified_by", r.coreProps.LastModifiedBy)
		setCustom(meta.Custom, "revision", r.coreProps.Revision)
		setCustom(meta.Custom, "modified", r.coreProps.Modified)
	}
	if r.appProps != nil {
		setCustom(meta.Custom, "application", r.appProps.Application)
		setCustom(meta.Custom, "template", r.appProps.Template)
	}
	return meta
}

func setCustom(m map[string]string, key, val string) {
	if v := strings.TrimSpace(val); v != "" {
		m[key] = v
	}
}

// parseRelationships parses the document relationships file.
func (r *Reader) parseRelationships() error {
	data, err := r.getFileContent("word/_rels/document.xml.rels")
	if err != nil {
		// Relationships file is optional
		r.rels = &relationshipsXML{}
		return nil
	}

	r.rels = &relationshipsXML{}
	return xml.Unmarshal(data, r.rels)
}

// relTarget resolves a relationship ID to an archive part name. External
// targets resolve to "".
func (r *Reader) relTarget(id string) (rel relationshipXML, part string) {
	for _, x := range r.rels.Relationships {
		if x.ID != id {
			continue
		}
		if strings.EqualFold(x.TargetMode, "External") {
			return x, ""
		}
		if strings.HasPrefix(x.Target, "/") {
			return x, strings.TrimPrefix(x.Target, "/")
		}
		return x, path.Clean(path.Join("word", x.Target))
	}
	return relationshipXML{}, ""
}

// parseDocument streams the main document content into blocks and returns
// the properties of the first section.
func (r *Reader) parseDocument() (*sectPrXML, error) {
	data, err := r.getFileContent("word/document.xml")
	if err != nil {
		return nil, err
	}

	w := &bodyWalker{r: r}
	if err := w.walk(xml.NewDecoder(bytes.NewReader(data))); err != nil {
		return nil, err
	}
	if w.blocks == nil {
		w.blocks = []model.Block{}
	}
	r.blocks = w.blocks
	return w.section, nil
}

// parseCoreProperties parses Dublin Core metadata.
func (r *Reader) parseCoreProperties() {
	data, err := r.getFileContent("docProps/core.xml")
	if err != nil {
		return
	}

	props := &corePropertiesXML{}
	if xml.Unmarshal(data, props) == nil {
		r.coreProps = props
	}
}

// parseAppProperties parses application metadata.
func (r *Reader) parseAppProperties() {
	data, err := r.getFileContent("docProps/app.xml")
	if err != nil {
		return
	}

	props := &appPropertiesXML{}
	if xml.Unmarshal(data, props) == nil {
		r.appProps = props
	}
}
