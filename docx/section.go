package docx

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// parseSection reads margins and the default header and footer of the
// first section. A document without section properties keeps the zero
// section.
func (r *Reader) parseSection(sect *sectPrXML) error {
	if sect == nil {
		return nil
	}

	if m := sect.PgMar; m != nil {
		r.section.Margins = model.Margins{
			Top:    twipsToCm(m.Top),
			Bottom: twipsToCm(m.Bottom),
			Left:   twipsToCm(m.Left),
			Right:  twipsToCm(m.Right),
		}
	}

	if id := defaultRef(sect.HeaderRefs); id != "" {
		text, style, err := r.parseHeaderFooter(id)
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		r.section.HeaderText, r.section.HeaderStyle = text, style
	}
	if id := defaultRef(sect.FooterRefs); id != "" {
		text, style, err := r.parseHeaderFooter(id)
		if err != nil {
			return fmt.Errorf("footer: %w", err)
		}
		r.section.FooterText, r.section.FooterStyle = text, style
	}
	return nil
}

// defaultRef picks the default header or footer reference, falling back to
// the first one.
func defaultRef(refs []partRefXML) string {
	for _, ref := range refs {
		if ref.Type == "" || ref.Type == "default" {
			return ref.ID
		}
	}
	if len(refs) > 0 {
		return refs[0].ID
	}
	return ""
}

// parseHeaderFooter reads the text of a header or footer part and the style
// of its first non-empty paragraph. Paragraph texts are joined with spaces.
func (r *Reader) parseHeaderFooter(id string) (string, model.TextStyle, error) {
	var style model.TextStyle

	rel, part := r.relTarget(id)
	if part == "" {
		if rel.ID == "" {
			return "", style, fmt.Errorf("unknown relationship %q", id)
		}
		return "", style, nil
	}
	if rel.Type != relHeader && rel.Type != relFooter {
		return "", style, fmt.Errorf("relationship %q is not a header or footer", id)
	}

	data, err := r.getFileContent(part)
	if err != nil {
		return "", style, err
	}
	var hf hdrFtrXML
	if err := xml.Unmarshal(data, &hf); err != nil {
		return "", style, fmt.Errorf("unmarshaling %s: %w", part, err)
	}

	var texts []string
	styled := false
	for _, p := range append(hf.Paragraphs, hf.Tables...) {
		text := strings.TrimSpace(paragraphText(p))
		if text == "" {
			continue
		}
		texts = append(texts, text)
		if !styled {
			style = paragraphStyle(p)
			styled = true
		}
	}
	return strings.Join(texts, " "), style, nil
}

// paragraphText extracts text from a header paragraph's runs. Tabs become
// spaces.
func paragraphText(p headerParagraphXML) string {
	var sb strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			sb.WriteString(t.Value)
		}
		for range run.Tabs {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// paragraphStyle reads alignment from the paragraph and weight and size
// from its first run with text.
func paragraphStyle(p headerParagraphXML) model.TextStyle {
	style := model.TextStyle{Alignment: alignment(p.Properties.Justification.Val)}
	for _, run := range p.Runs {
		if len(run.Text) == 0 {
			continue
		}
		style.Bold = run.Properties.Bold.on()
		if hp, err := strconv.ParseFloat(run.Properties.FontSize.Val, 64); err == nil {
			style.SizePt = hp / 2
		}
		break
	}
	return style
}

// alignment maps OOXML justification values onto the model's names.
func alignment(jc string) string {
	switch jc {
	case "", "left", "start":
		return "left"
	case "center":
		return "center"
	case "right", "end":
		return "right"
	case "both", "distribute":
		return "both"
	default:
		return "left"
	}
}

// twipsToCm converts a twips measurement to centimetres rounded to 0.01.
// Negative top and bottom margins mean text may overlap the header; only
// their size matters here.
func twipsToCm(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return math.Round(math.Abs(v)/twipsPerCm*100) / 100
}
