package docx

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// bodyWalker accumulates blocks while streaming word/document.xml.
type bodyWalker struct {
	r      *Reader
	blocks []model.Block
	// section is the first section seen. A section ending mid-document is
	// stored in the pPr of its last paragraph; the final one sits directly
	// in the body.
	section *sectPrXML
}

func (w *bodyWalker) setSection(s *sectPrXML) {
	if w.section == nil {
		w.section = s
	}
}

// walk reads the whole document. Paragraphs and tables consume their own
// subtrees, so the loop only sees body-level structure and content control
// wrappers, which are walked through.
func (w *bodyWalker) walk(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading document.xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != nsW {
			continue
		}

		switch start.Name.Local {
		case "p":
			b, err := w.paragraph(dec)
			if err != nil {
				return err
			}
			w.blocks = append(w.blocks, b)
		case "tbl":
			b, err := w.table(dec)
			if err != nil {
				return err
			}
			w.blocks = append(w.blocks, b)
		case "sectPr":
			s := &sectPrXML{}
			if err := dec.DecodeElement(s, &start); err != nil {
				return fmt.Errorf("decoding sectPr: %w", err)
			}
			w.setSection(s)
		}
	}
}

// paragraph reads a <w:p> whose start element was just consumed.
func (w *bodyWalker) paragraph(dec *xml.Decoder) (model.Block, error) {
	var (
		b    model.Block
		text strings.Builder
	)
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return b, fmt.Errorf("reading paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			consumed, err := w.inline(dec, t, &b, &text)
			if err != nil {
				return b, err
			}
			if !consumed {
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}

	b.Text = text.String()
	for i, o := range b.Objects {
		if o.Kind == model.ObjectField {
			b.Objects[i].Name = fieldName(o.Name)
		}
	}
	return b, nil
}

// inline handles one element inside a paragraph. It reports whether the
// element's subtree was consumed.
func (w *bodyWalker) inline(dec *xml.Decoder, t xml.StartElement, b *model.Block, text *strings.Builder) (bool, error) {
	switch t.Name.Space {
	case nsM:
		if t.Name.Local != "oMath" && t.Name.Local != "oMathPara" {
			return false, nil
		}
		s, err := innerText(dec, nsM, "t")
		if err != nil {
			return true, fmt.Errorf("reading equation: %w", err)
		}
		text.WriteString(s)
		b.Objects = append(b.Objects, model.InlineObject{Kind: model.ObjectEquation})
		return true, nil
	case nsMC:
		// The fallback branch carries the same content in older markup.
		if t.Name.Local == "Choice" {
			return true, dec.Skip()
		}
		return false, nil
	case nsW:
	default:
		return false, nil
	}

	switch t.Name.Local {
	case "pPr":
		var props paragraphPropsXML
		if err := dec.DecodeElement(&props, &t); err != nil {
			return true, fmt.Errorf("decoding pPr: %w", err)
		}
		b.SourceIndentCm = indentCm(props.Indent)
		b.IndentLevel = model.LevelForCm(b.SourceIndentCm)
		if props.Section != nil {
			w.setSection(props.Section)
		}
	case "t":
		var tx textXML
		if err := dec.DecodeElement(&tx, &t); err != nil {
			return true, err
		}
		text.WriteString(tx.Value)
	case "tab":
		text.WriteByte('\t')
		return true, dec.Skip()
	case "br", "cr":
		text.WriteByte(' ')
		return true, dec.Skip()
	case "noBreakHyphen":
		text.WriteByte('-')
		return true, dec.Skip()
	case "sym":
		if r, ok := symRune(attr(t, "char")); ok {
			text.WriteRune(r)
		}
		return true, dec.Skip()
	case "rPr", "del":
		// Run formatting and deleted revisions carry no visible text.
		return true, dec.Skip()
	case "fldChar":
		if attr(t, "fldCharType") == "begin" {
			b.Objects = append(b.Objects, model.InlineObject{Kind: model.ObjectField})
		}
		return true, dec.Skip()
	case "instrText":
		var tx textXML
		if err := dec.DecodeElement(&tx, &t); err != nil {
			return true, err
		}
		if i := lastField(b.Objects); i >= 0 {
			b.Objects[i].Name += tx.Value
		}
	case "fldSimple":
		b.Objects = append(b.Objects, model.InlineObject{Kind: model.ObjectField, Name: attr(t, "instr")})
		// The cached result runs are walked as ordinary text.
		return false, nil
	case "drawing":
		var d drawingXML
		if err := dec.DecodeElement(&d, &t); err != nil {
			return true, fmt.Errorf("decoding drawing: %w", err)
		}
		b.Objects = append(b.Objects, w.r.drawingObject(d))
	case "pict":
		b.Objects = append(b.Objects, model.InlineObject{Kind: model.ObjectImage, Name: "vml"})
		return true, dec.Skip()
	case "object":
		var o objectXML
		if err := dec.DecodeElement(&o, &t); err != nil {
			return true, fmt.Errorf("decoding object: %w", err)
		}
		b.Objects = append(b.Objects, model.InlineObject{Kind: model.ObjectEmbedded, Name: o.OLE.ProgID})
	default:
		return false, nil
	}
	return true, nil
}

// table reads a <w:tbl> whose start element was just consumed into a single
// block.
func (w *bodyWalker) table(dec *xml.Decoder) (model.Block, error) {
	b := model.Block{Objects: []model.InlineObject{{Kind: model.ObjectTable}}}
	var rows, cells, paras []string

	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return b, fmt.Errorf("reading table: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsW {
				depth++
				continue
			}
			var inner model.Block
			switch t.Name.Local {
			case "p":
				inner, err = w.paragraph(dec)
			case "tbl":
				inner, err = w.table(dec)
			default:
				depth++
				continue
			}
			if err != nil {
				return b, err
			}
			if s := strings.TrimSpace(inner.Text); s != "" {
				paras = append(paras, s)
			}
			b.Objects = append(b.Objects, inner.Objects...)
		case xml.EndElement:
			depth--
			if t.Name.Space != nsW {
				continue
			}
			switch t.Name.Local {
			case "tc":
				cells = append(cells, strings.Join(paras, " "))
				paras = nil
			case "tr":
				rows = append(rows, strings.Join(cells, " | "))
				cells = nil
			}
		}
	}

	b.Text = strings.Join(rows, " / ")
	return b, nil
}

// innerText consumes the rest of the current element and returns the
// character data of every descendant named space:local.
func innerText(dec *xml.Decoder, space, local string) (string, error) {
	var sb strings.Builder
	inText := 0
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Space == space && t.Name.Local == local {
				inText++
			}
		case xml.EndElement:
			depth--
			if t.Name.Space == space && t.Name.Local == local {
				inText--
			}
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func lastField(objs []model.InlineObject) int {
	for i := len(objs) - 1; i >= 0; i-- {
		if objs[i].Kind == model.ObjectField {
			return i
		}
	}
	return -1
}

// fieldName reduces a field instruction to its keyword: " PAGE \* MERGEFORMAT "
// becomes "PAGE".
func fieldName(instr string) string {
	f := strings.Fields(instr)
	if len(f) == 0 {
		return ""
	}
	return strings.ToUpper(f[0])
}

// symRune decodes the hex code of a <w:sym>. Symbol fonts map their glyphs
// into the private use area at F000.
func symRune(hex string) (rune, bool) {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	if v >= 0xF000 && v <= 0xF0FF {
		v -= 0xF000
	}
	return rune(v), true
}

// indentCm returns a left indentation in centimetres rounded to 0.01.
// Negative (outdented) values count as none.
func indentCm(ind indentXML) float64 {
	v := ind.Left
	if v == "" {
		v = ind.Start
	}
	twips, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || twips <= 0 {
		return 0
	}
	return math.Round(twips/twipsPerCm*100) / 100
}
