package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

var (
	reGuideParen   = regexp.MustCompile(`(?i)\(\d+\s*marks?\)`)
	reGuideBracket = regexp.MustCompile(`(?i)\[\d+\s*marks?\]`)
)

// guideForm is a canonical numbering form a guideline may show.
type guideForm struct {
	re     *regexp.Regexp
	level  int
	format string
	roman  bool
}

// guideForms are checked in order. Every format is one NumberingFormat
// accepts.
var guideForms = []guideForm{
	{re: regexp.MustCompile(`^Q\d+\.`), level: 0, format: "Q{n}."},
	{re: regexp.MustCompile(`^\d+\.(\s|$)`), level: 0, format: "{n}."},
	{re: regexp.MustCompile(`^\([ivx]+\)`), level: 2, format: "({i})", roman: true},
	{re: regexp.MustCompile(`^[ivx]+\)`), level: 2, format: "{i})", roman: true},
	{re: regexp.MustCompile(`^\([a-z]\)`), level: 1, format: "({a})"},
	{re: regexp.MustCompile(`^[a-z]\)`), level: 1, format: "{a})"},
	{re: regexp.MustCompile(`^\([A-Z]\)`), level: 3, format: "({A})"},
	{re: regexp.MustCompile(`^[A-Z]\)`), level: 3, format: "{A})"},
}

// classifyGuide returns the numbering form of a guideline block. A single
// roman letter on a level 1 block is read as a letter.
func classifyGuide(b model.Block) (guideForm, bool) {
	t := strings.TrimSpace(b.Text)
	for _, f := range guideForms {
		if f.roman && b.IndentLevel == 1 {
			continue
		}
		if f.re.MatchString(t) {
			return f, true
		}
	}
	return guideForm{}, false
}

// guideScheme is what a guideline shows per numbering level: the first
// form used and the first explicit indentation.
type guideScheme struct {
	formats [4]string
	indents [4]float64
}

func scanScheme(doc *model.Document) guideScheme {
	var g guideScheme
	for _, b := range doc.Blocks {
		f, ok := classifyGuide(b)
		if !ok {
			continue
		}
		if g.formats[f.level] == "" {
			g.formats[f.level] = f.format
		}
		if g.indents[f.level] == 0 && b.SourceIndentCm > 0 {
			g.indents[f.level] = b.SourceIndentCm
		}
	}
	return g
}

// Extract derives a rule set from a guideline document: a sample paper that
// already follows the institution's template. Anything the guideline does
// not show keeps the value from Default. The result is validated.
func Extract(doc *model.Document, title string) (*RuleSet, error) {
	rs := Default()
	rs.Title = title
	rs.ID = slug.Make(title)
	if doc == nil {
		return rs, Validate(rs)
	}

	var lines []string
	for _, b := range doc.Blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			lines = append(lines, t)
		}
	}

	g := scanScheme(doc)
	formats := []*string{
		&rs.NumberingFormat.Question,
		&rs.NumberingFormat.Part,
		&rs.NumberingFormat.Subpart,
		&rs.NumberingFormat.Item,
	}
	for level, f := range g.formats {
		if f != "" {
			*formats[level] = f
		}
		if g.indents[level] > 0 {
			rs.IndentCmPerLevel[level] = g.indents[level]
		}
	}

	rs.MarksPattern = detectMarksPattern(lines)
	rs.HeaderText = detectHeader(doc, lines, rs.HeaderText)
	if ft := strings.TrimSpace(doc.Section.FooterText); ft != "" && utf8.RuneCountInString(ft) <= maxSectionText {
		rs.FooterText = ft
	}
	if doc.Section.HeaderStyle != (model.TextStyle{}) {
		rs.HeaderStyle = doc.Section.HeaderStyle
	}
	if doc.Section.FooterStyle != (model.TextStyle{}) {
		rs.FooterStyle = doc.Section.FooterStyle
	}
	if doc.Section.Margins != (model.Margins{}) {
		rs.Margins = doc.Section.Margins
	}
	rs.MetadataLabels = detectLabels(lines)

	if err := Validate(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// NumberingScheme reports which canonical numbering forms a guideline uses,
// in level order, e.g. ["Q{n}.", "({a})", "({i})"].
func NumberingScheme(doc *model.Document) []string {
	var scheme []string
	if doc != nil {
		for _, f := range scanScheme(doc).formats {
			if f != "" {
				scheme = append(scheme, f)
			}
		}
	}
	if len(scheme) == 0 {
		return []string{"Q{n}.", "({a})", "({i})"}
	}
	return scheme
}

func detectMarksPattern(lines []string) string {
	for _, l := range lines {
		if reGuideParen.MatchString(l) {
			return "({n} {unit})"
		}
		if reGuideBracket.MatchString(l) {
			return "[{n} {unit}]"
		}
	}
	return "({n} {unit})"
}

// maxSectionText is the longest header or footer text a rule set accepts.
const maxSectionText = 200

// detectHeader prefers the section header and falls back to the first short
// upper-case line, which on a cover page is the institution name.
func detectHeader(doc *model.Document, lines []string, fallback string) string {
	// Longer text is a cover paragraph placed in the header, not a title.
	if h := strings.TrimSpace(doc.Section.HeaderText); h != "" && utf8.RuneCountInString(h) <= maxSectionText {
		return h
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) < 80 && l == strings.ToUpper(l) && strings.ToLower(l) != l {
			return l
		}
	}
	return fallback
}

func detectLabels(lines []string) []string {
	var labels []string
	for _, want := range DefaultMetadataLabels {
		for _, l := range lines {
			if strings.HasPrefix(strings.ToUpper(l), want) && strings.Contains(l, ":") {
				labels = append(labels, want)
				break
			}
		}
	}
	if len(labels) == 0 {
		return append([]string(nil), DefaultMetadataLabels...)
	}
	return labels
}
