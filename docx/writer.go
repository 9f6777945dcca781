package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// Element orders from the WordprocessingML schema. Word rejects documents
// whose property children are out of order.
var (
	pPrOrder = []string{
		"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr", "widowControl",
		"numPr", "suppressLineNumbers", "pBdr", "shd", "tabs", "suppressAutoHyphens",
		"kinsoku", "wordWrap", "overflowPunct", "topLinePunct", "autoSpaceDE", "autoSpaceDN",
		"bidi", "adjustRightInd", "snapToGrid", "spacing", "ind", "contextualSpacing",
		"mirrorIndents", "suppressOverlap", "jc", "textDirection", "textAlignment",
		"textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr", "sectPr", "pPrChange",
	}
	rPrOrder = []string{
		"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike", "dstrike",
		"outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid", "vanish",
		"webHidden", "color", "spacing", "w", "kern", "position", "sz", "szCs", "highlight",
		"u", "effect", "bdr", "shd", "fitText", "vertAlign", "rtl", "cs", "em", "lang",
		"eastAsianLayout", "specVanish", "oMath",
	}
	sectPrOrder = []string{
		"headerReference", "footerReference", "footnotePr", "endnotePr", "type", "pgSz",
		"pgMar", "paperSrc", "pgBorders", "lnNumType", "pgNumType", "cols", "formProt",
		"vAlign", "noEndnote", "titlePg", "textDirection", "bidi", "rtlGutter", "docGrid",
		"printerSettings", "sectPrChange",
	}
)

// textElems are the run children that carry visible text.
var textElems = []string{"t", "tab", "br", "cr", "noBreakHyphen", "sym"}

// IndentFunc gives the left indentation in centimetres of an indentation
// level.
type IndentFunc func(level int) float64

// Write copies the DOCX archive src to w with the content of doc applied.
// doc must be src's document after normalization: same blocks in the same
// order. Protected blocks and tables are copied untouched. Every other
// paragraph whose text changed gets the new text in its first run and its
// other runs emptied; a paragraph whose indentation differs from indent's
// value for its level gets a new w:ind. Margins go to every section and the
// header and footer text and style to the parts the first section shows,
// which are created when missing.
func Write(w io.Writer, src []byte, doc *model.Document, indent IndentFunc) error {
	if doc == nil {
		return errors.New("no document to write")
	}
	r, err := OpenBytes(src)
	if err != nil {
		return err
	}
	if len(r.blocks) != len(doc.Blocks) {
		return fmt.Errorf("document has %d blocks, source has %d", len(doc.Blocks), len(r.blocks))
	}

	pw := &partWriter{r: r, parts: make(map[string][]byte)}
	if err := pw.document(doc, indent); err != nil {
		return fmt.Errorf("rewriting document.xml: %w", err)
	}
	return pw.archive(w)
}

// WriteFile writes the normalized copy of the DOCX file src to dst.
func WriteFile(dst, src string, doc *model.Document, indent IndentFunc) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(src), err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, data, doc, indent); err != nil {
		return err
	}
	return os.WriteFile(dst, buf.Bytes(), 0o644)
}

// partWriter collects rewritten and new parts of one archive.
type partWriter struct {
	r     *Reader
	parts map[string][]byte
	// added lists parts that are not in the source, in creation order.
	added []string
}

func (pw *partWriter) document(doc *model.Document, indent IndentFunc) error {
	data, err := pw.r.getFileContent("word/document.xml")
	if err != nil {
		return err
	}
	tree, err := parseTree(data)
	if err != nil {
		return err
	}

	var paras, sects []*node
	for _, n := range tree {
		collectBody(n, &paras, &sects)
	}
	if len(paras) != len(pw.r.blocks) {
		return fmt.Errorf("found %d blocks, expected %d", len(paras), len(pw.r.blocks))
	}
	for i, b := range doc.Blocks {
		orig := pw.r.blocks[i]
		p := paras[i]
		if b.Protected || orig.HasObject(model.ObjectTable) || !p.is(nsW, "p") {
			continue
		}
		if b.Text != orig.Text {
			setParagraphText(p, b.Text)
		}
		if indent != nil {
			cm := indent(b.IndentLevel)
			if math.Abs(cm-b.SourceIndentCm) > 0.005 {
				setIndent(p, twips(cm))
			}
		}
	}

	orig := pw.r.section
	if !doc.Section.Margins.Equal(orig.Margins) {
		if len(sects) == 0 {
			sects = append(sects, appendSection(tree))
		}
		for _, s := range sects {
			setMargins(s, doc.Section.Margins)
		}
	}

	header := doc.Section.HeaderText != orig.HeaderText || doc.Section.HeaderStyle != orig.HeaderStyle
	footer := doc.Section.FooterText != orig.FooterText || doc.Section.FooterStyle != orig.FooterStyle
	if (header || footer) && len(sects) == 0 {
		sects = append(sects, appendSection(tree))
	}
	if header {
		if err := pw.headerFooter(sects[0], "headerReference", "hdr", doc.Section.HeaderText, doc.Section.HeaderStyle); err != nil {
			return fmt.Errorf("header: %w", err)
		}
	}
	if footer {
		if err := pw.headerFooter(sects[0], "footerReference", "ftr", doc.Section.FooterText, doc.Section.FooterStyle); err != nil {
			return fmt.Errorf("footer: %w", err)
		}
	}

	pw.parts["word/document.xml"] = writeTree(tree)
	return nil
}

// collectBody lists body blocks and sections in the order the reader sees
// them: paragraphs and tables are blocks, anything else is walked through.
func collectBody(n *node, blocks, sects *[]*node) {
	se, ok := n.start()
	if !ok {
		return
	}
	if se.Name.Space == nsW {
		switch se.Name.Local {
		case "p", "tbl":
			*blocks = append(*blocks, n)
			*sects = append(*sects, n.find(nsW, "sectPr")...)
			return
		case "sectPr":
			*sects = append(*sects, n)
			return
		}
	}
	for _, c := range n.children {
		collectBody(c, blocks, sects)
	}
}

// appendSection adds an empty final section to the body.
func appendSection(tree []*node) *node {
	s := newElem("sectPr")
	for _, n := range tree {
		if body := n.child("body"); body != nil {
			body.children = append(body.children, s)
			break
		}
	}
	return s
}

// setParagraphText removes the text of every run, breaks included, and puts
// text into the first run.
func setParagraphText(p *node, text string) {
	stripText(p)

	var run *node
	if runs := p.elements(nsW, "r"); len(runs) > 0 {
		run = runs[0]
	} else {
		run = newElem("r")
		p.children = append(p.children, run)
	}
	at := 0
	for i, c := range run.children {
		if c.is(nsW, "rPr") {
			at = i + 1
			break
		}
	}
	run.children = slices.Insert(run.children, at, textNodes(text)...)
}

func stripText(n *node) {
	n.children = slices.DeleteFunc(n.children, func(c *node) bool {
		se, ok := c.start()
		return ok && se.Name.Space == nsW && slices.Contains(textElems, se.Name.Local)
	})
	for _, c := range n.children {
		// Property elements hold tab stops, not tabs.
		if c.is(nsW, "del") || c.is(nsW, "pPr") || c.is(nsW, "rPr") || c.is(nsW, "tblPr") {
			continue
		}
		stripText(c)
	}
}

// textNodes renders text as w:t elements separated by w:tab.
func textNodes(text string) []*node {
	var out []*node
	for i, part := range strings.Split(text, "\t") {
		if i > 0 {
			out = append(out, newElem("tab"))
		}
		if part == "" {
			continue
		}
		t := newElem("t", xml.Attr{Name: xml.Name{Space: xmlNS, Local: "space"}, Value: "preserve"})
		t.children = []*node{{tok: xml.CharData(part)}}
		out = append(out, t)
	}
	return out
}

// props returns the w:local properties child of n, creating it as the first
// child when missing.
func props(n *node, local string) *node {
	if c := n.child(local); c != nil {
		return c
	}
	c := newElem(local)
	n.children = slices.Insert(n.children, 0, c)
	return c
}

// setIndent sets the left indentation of p, keeping hanging and first line
// indents.
func setIndent(p *node, left int) {
	pPr := props(p, "pPr")
	ind := newElem("ind")
	if old := pPr.child("ind"); old != nil {
		se, _ := old.start()
		for _, a := range se.Attr {
			if a.Name.Local != "left" && a.Name.Local != "start" {
				ind.setAttr(a.Name.Space, a.Name.Local, a.Value)
			}
		}
	}
	ind.setAttr(nsW, "left", strconv.Itoa(left))
	pPr.placeChild(ind, pPrOrder)
}

// setMargins sets the four page margins of a section. Header, footer and
// gutter distances stay.
func setMargins(sect *node, m model.Margins) {
	pgMar := sect.child("pgMar")
	if pgMar == nil {
		pgMar = newElem("pgMar", wAttr("header", "720"), wAttr("footer", "720"), wAttr("gutter", "0"))
		sect.insertOrdered(pgMar, sectPrOrder)
	}
	pgMar.setAttr(nsW, "top", strconv.Itoa(twips(m.Top)))
	pgMar.setAttr(nsW, "bottom", strconv.Itoa(twips(m.Bottom)))
	pgMar.setAttr(nsW, "left", strconv.Itoa(twips(m.Left)))
	pgMar.setAttr(nsW, "right", strconv.Itoa(twips(m.Right)))
}

// headerFooter rewrites the header or footer part the section shows, adding
// one when the section has none.
func (pw *partWriter) headerFooter(sect *node, refLocal, rootLocal, text string, style model.TextStyle) error {
	var refs []partRefXML
	for _, ref := range sect.elements(nsW, refLocal) {
		refs = append(refs, partRefXML{Type: ref.attr("type"), ID: ref.attr("id")})
	}

	var part string
	if id := defaultRef(refs); id != "" {
		_, part = pw.r.relTarget(id)
	}

	var tree []*node
	if part != "" && pw.r.getFile(part) != nil {
		data, err := pw.r.getFileContent(part)
		if err != nil {
			return err
		}
		if tree, err = parseTree(data); err != nil {
			return fmt.Errorf("parsing %s: %w", part, err)
		}
	} else {
		var err error
		if part, err = pw.addHeaderFooter(sect, refLocal, rootLocal); err != nil {
			return err
		}
		tree = []*node{
			{tok: xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8" standalone="yes"`)}},
			newElem(rootLocal, xml.Attr{Name: xml.Name{Space: "xmlns", Local: "w"}, Value: nsW}),
		}
	}

	for _, n := range tree {
		if n.is(nsW, rootLocal) {
			setHeaderFooterText(n, text, style)
		}
	}
	pw.parts[part] = writeTree(tree)
	return nil
}

// setHeaderFooterText puts text into the first paragraph that had text, or
// the first paragraph, and empties the others. Pictures stay.
func setHeaderFooterText(root *node, text string, style model.TextStyle) {
	var target *node
	for _, p := range root.elements(nsW, "p") {
		if strings.TrimSpace(p.text()) != "" {
			target = p
			break
		}
	}
	if target == nil {
		if paras := root.elements(nsW, "p"); len(paras) > 0 {
			target = paras[0]
		} else {
			target = newElem("p")
			root.children = append(root.children, target)
		}
	}
	for _, c := range root.children {
		if c != target {
			stripText(c)
		}
	}
	setParagraphText(target, text)

	if style.Alignment != "" {
		props(target, "pPr").placeChild(newElem("jc", wAttr("val", style.Alignment)), pPrOrder)
	}
	rPr := props(target.elements(nsW, "r")[0], "rPr")
	if style.Bold {
		rPr.placeChild(newElem("b"), rPrOrder)
	} else {
		rPr.removeChildren("b")
	}
	if style.SizePt > 0 {
		rPr.placeChild(newElem("sz", wAttr("val", strconv.Itoa(int(math.Round(style.SizePt*2))))), rPrOrder)
	} else {
		rPr.removeChildren("sz")
	}
}

// addHeaderFooter creates a header or footer part, its relationship and
// content type, and references it from sect as the default.
func (pw *partWriter) addHeaderFooter(sect *node, refLocal, rootLocal string) (string, error) {
	kind, relType, ct := "header", relHeader, ctHeader
	if rootLocal == "ftr" {
		kind, relType, ct = "footer", relFooter, ctFooter
	}

	var part string
	for i := 1; ; i++ {
		part = fmt.Sprintf("word/%s%d.xml", kind, i)
		if pw.r.getFile(part) == nil && pw.parts[part] == nil {
			break
		}
	}

	ids := make(map[string]bool)
	for _, rel := range pw.r.rels.Relationships {
		ids[rel.ID] = true
	}
	id := ""
	for i := len(pw.r.rels.Relationships) + 1; ; i++ {
		if id = "rId" + strconv.Itoa(i); !ids[id] {
			break
		}
	}
	rel := relationshipXML{ID: id, Type: relType, Target: path.Base(part)}
	pw.r.rels.Relationships = append(pw.r.rels.Relationships, rel)

	if err := pw.editPart("word/_rels/document.xml.rels", "Relationships", nsPkgRels, func(root *node) {
		root.children = append(root.children, &node{tok: xml.StartElement{
			Name: xml.Name{Space: nsPkgRels, Local: "Relationship"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "Id"}, Value: rel.ID},
				{Name: xml.Name{Local: "Type"}, Value: rel.Type},
				{Name: xml.Name{Local: "Target"}, Value: rel.Target},
			},
		}})
	}); err != nil {
		return "", err
	}
	if err := pw.editPart("[Content_Types].xml", "Types", nsContentType, func(root *node) {
		root.children = append(root.children, &node{tok: xml.StartElement{
			Name: xml.Name{Space: nsContentType, Local: "Override"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "PartName"}, Value: "/" + part},
				{Name: xml.Name{Local: "ContentType"}, Value: ct},
			},
		}})
	}); err != nil {
		return "", err
	}

	sect.children = slices.DeleteFunc(sect.children, func(c *node) bool {
		t := c.attr("type")
		return c.is(nsW, refLocal) && (t == "" || t == "default")
	})
	ref := newElem(refLocal, wAttr("type", "default"), xml.Attr{Name: xml.Name{Space: nsR, Local: "id"}, Value: id})
	sect.insertOrdered(ref, sectPrOrder)
	pw.added = append(pw.added, part)
	return part, nil
}

// editPart applies fn to the root element of a package part, creating the
// part when the source has none.
func (pw *partWriter) editPart(name, rootLocal, space string, fn func(root *node)) error {
	data := pw.parts[name]
	if data == nil && pw.r.getFile(name) != nil {
		var err error
		if data, err = pw.r.getFileContent(name); err != nil {
			return err
		}
	}

	var tree []*node
	if data != nil {
		var err error
		if tree, err = parseTree(data); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
	} else {
		tree = []*node{
			{tok: xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8" standalone="yes"`)}},
			{tok: xml.StartElement{
				Name: xml.Name{Space: space, Local: rootLocal},
				Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: space}},
			}},
		}
		pw.added = append(pw.added, name)
	}

	for _, n := range tree {
		if n.is(space, rootLocal) {
			fn(n)
		}
	}
	pw.parts[name] = writeTree(tree)
	return nil
}

// archive writes the source archive with the rewritten parts swapped in and
// the new parts appended. Untouched entries are copied without recompressing.
func (pw *partWriter) archive(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range pw.r.zipReader.File {
		data, ok := pw.parts[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copying %s: %w", f.Name, err)
			}
			continue
		}
		hdr := &zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified}
		if err := writeEntry(zw, hdr, data); err != nil {
			return err
		}
	}
	for _, name := range pw.added {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if err := writeEntry(zw, hdr, pw.parts[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, hdr *zip.FileHeader, data []byte) error {
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating %s: %w", hdr.Name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", hdr.Name, err)
	}
	return nil
}

// twips converts centimetres to whole twips.
func twips(cm float64) int {
	return int(math.Round(cm * twipsPerCm))
}
