// Package formatter runs the normalization pipeline over a whole document.
//
// The stages always run in the same order:
//
//  1. protection (math guard)
//  2. header and footer text and style
//  3. margins
//  4. numbering and indentation
//  5. marks notation
//  6. colon spacing
//
// Format never mutates its input. The returned document is a deep copy.
package formatter

import (
	"fmt"
	"unicode/utf8"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/normalize"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// MalformedDocumentError reports a document the formatter cannot process.
type MalformedDocumentError struct {
	// BlockIndex is the offending block, or -1 for the document as a whole.
	BlockIndex int
	Reason     string
	Err        error
}

func (e *MalformedDocumentError) Error() string {
	msg := "malformed document"
	if e.BlockIndex >= 0 {
		msg = fmt.Sprintf("%s: block %d", msg, e.BlockIndex)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// Formatter applies a rule set to a document. A Formatter holds no mutable
// state and is safe for concurrent use.
type Formatter struct {
	guard     *normalize.MathGuard
	numbering *normalize.Numbering
	marks     normalize.Normalizer
	spacing   normalize.Normalizer
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithMathGuard replaces the default math guard.
func WithMathGuard(g *normalize.MathGuard) Option {
	return func(f *Formatter) {
		f.guard = g
	}
}

// WithNumbering replaces the default numbering normalizer, e.g. one built
// with a custom matcher table.
func WithNumbering(n *normalize.Numbering) Option {
	return func(f *Formatter) {
		f.numbering = n
	}
}

// New creates a formatter with the default stages.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		guard:     normalize.NewMathGuard(),
		numbering: normalize.NewNumbering(),
		marks:     normalize.NewMarks(),
		spacing:   normalize.NewSpacing(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format normalizes doc against rs. It returns a *MalformedDocumentError for
// a nil document, invalid UTF-8 or an out-of-range indentation level, and a
// *rules.TemplateResolutionError for a nil or invalid rule set. No partial
// result is returned on error.
func (f *Formatter) Format(doc *model.Document, rs *rules.RuleSet) (*model.NormalizationResult, error) {
	if err := Check(doc); err != nil {
		return nil, err
	}
	if err := rules.Validate(rs); err != nil {
		return nil, err
	}

	out := doc.Clone()
	var changes []model.Change

	out.Blocks = f.guard.Protect(out.Blocks)

	changes = append(changes, applySection(&out.Section, rs)...)

	blocks, numbering, notes := f.numbering.NormalizeWithNotes(out.Blocks, rs)
	changes = append(changes, numbering...)

	for _, n := range []normalize.Normalizer{f.marks, f.spacing} {
		var stage []model.Change
		blocks, stage = n.Normalize(blocks, rs)
		changes = append(changes, stage...)
	}
	out.Blocks = blocks

	return &model.NormalizationResult{
		Document:    out,
		Changes:     changes,
		Ambiguities: notes,
	}, nil
}

// Check validates the structure of doc without formatting it.
func Check(doc *model.Document) error {
	if doc == nil {
		return &MalformedDocumentError{BlockIndex: -1, Reason: "document is nil"}
	}
	for i, b := range doc.Blocks {
		if !utf8.ValidString(b.Text) {
			return &MalformedDocumentError{BlockIndex: i, Reason: "text is not valid UTF-8"}
		}
		if !model.ValidIndentLevel(b.IndentLevel) {
			return &MalformedDocumentError{
				BlockIndex: i,
				Reason:     fmt.Sprintf("indent level %d outside 0..%d", b.IndentLevel, model.MaxIndentLevel),
			}
		}
	}
	return nil
}

// applySection brings header, footer and margins in line with rs. Empty
// rule values leave the document's value untouched.
func applySection(s *model.Section, rs *rules.RuleSet) []model.Change {
	var changes []model.Change
	record := func(before, after string) {
		changes = append(changes, model.Change{
			BlockIndex: model.SectionIndex,
			Category:   model.CategoryHeader,
			Before:     before,
			After:      after,
		})
	}

	if rs.HeaderText != "" && s.HeaderText != rs.HeaderText {
		record("header: "+s.HeaderText, "header: "+rs.HeaderText)
		s.HeaderText = rs.HeaderText
	}
	if rs.HeaderStyle != (model.TextStyle{}) && s.HeaderStyle != rs.HeaderStyle {
		record("header style: "+s.HeaderStyle.String(), "header style: "+rs.HeaderStyle.String())
		s.HeaderStyle = rs.HeaderStyle
	}
	if rs.FooterText != "" && s.FooterText != rs.FooterText {
		record("footer: "+s.FooterText, "footer: "+rs.FooterText)
		s.FooterText = rs.FooterText
	}
	if rs.FooterStyle != (model.TextStyle{}) && s.FooterStyle != rs.FooterStyle {
		record("footer style: "+s.FooterStyle.String(), "footer style: "+rs.FooterStyle.String())
		s.FooterStyle = rs.FooterStyle
	}
	if rs.Margins != (model.Margins{}) && !s.Margins.Equal(rs.Margins) {
		record("margins: "+s.Margins.String(), "margins: "+rs.Margins.String())
		s.Margins = rs.Margins
	}
	return changes
}
