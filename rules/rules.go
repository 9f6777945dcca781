// Package rules defines the institutional template a document is normalized
// against, and resolves rule sets from a registry keyed by institution and
// faculty.
//
// A rule set is data only. The formatter never invents one: a missing or
// invalid rule set is reported as a [TemplateResolutionError] and callers
// decide whether to substitute [Default].
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// Placeholders understood by numbering and marks formats.
const (
	PlaceholderNumber = "{n}"
	PlaceholderLetter = "{a}"
	PlaceholderRoman  = "{i}"
	PlaceholderUpper  = "{A}"
	PlaceholderUnit   = "{unit}"
)

// NumberingFormat holds the canonical rendering of each numbering level.
// Only forms that the numbering matcher table recognizes again are allowed,
// otherwise a second normalization pass would not be a no-op.
type NumberingFormat struct {
	Question string `json:"question" yaml:"question" validate:"oneof='Q{n}.' '{n}.'"`
	Part     string `json:"part" yaml:"part" validate:"oneof='({a})' '{a})'"`
	Subpart  string `json:"subpart" yaml:"subpart" validate:"oneof='({i})' '{i})'"`
	Item     string `json:"item" yaml:"item" validate:"oneof='({A})' '{A})'"`
}

// ForLevel returns the format for a numbering level (0-3).
func (f NumberingFormat) ForLevel(level int) string {
	switch level {
	case 0:
		return f.Question
	case 1:
		return f.Part
	case 2:
		return f.Subpart
	default:
		return f.Item
	}
}

// RuleSet is the canonical formatting template of one institution/faculty.
type RuleSet struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`

	NumberingFormat NumberingFormat `json:"numbering_format" yaml:"numbering_format"`
	// IndentCmPerLevel is the left indentation of levels 0-3 in centimetres.
	IndentCmPerLevel [4]float64 `json:"indent_cm" yaml:"indent_cm" validate:"dive,gte=0,lte=20"`
	// MarksPattern is the canonical marks annotation, "({n} {unit})" or
	// "[{n} {unit}]".
	MarksPattern string `json:"marks_pattern" yaml:"marks_pattern" validate:"oneof='({n} {unit})' '[{n} {unit}]'"`
	// ColonSpacing enables "LABEL : value" enforcement on metadata lines.
	ColonSpacing   bool     `json:"colon_spacing" yaml:"colon_spacing"`
	MetadataLabels []string `json:"metadata_labels" yaml:"metadata_labels" validate:"dive,required"`

	Margins     model.Margins   `json:"margins" yaml:"margins"`
	HeaderText  string          `json:"header_text" yaml:"header_text" validate:"max=200"`
	FooterText  string          `json:"footer_text" yaml:"footer_text" validate:"max=200"`
	HeaderStyle model.TextStyle `json:"header_style" yaml:"header_style"`
	FooterStyle model.TextStyle `json:"footer_style" yaml:"footer_style"`
}

// DefaultMetadataLabels are the cover-page labels whose colon spacing is
// enforced when a rule set does not list its own.
var DefaultMetadataLabels = []string{
	"DATE",
	"DURATION",
	"COURSE CODE",
	"COURSE NAME",
	"PROGRAM",
}

// CanonicalIndentCm is the default indentation per level.
var CanonicalIndentCm = [4]float64{0, 1.5, 3.0, 4.5}

// Default returns the institutional default rule set. The formatter never
// falls back to it on its own; callers substitute it explicitly.
func Default() *RuleSet {
	return &RuleSet{
		ID:    "default",
		Title: "Southern University College exam paper",
		NumberingFormat: NumberingFormat{
			Question: "Q{n}.",
			Part:     "({a})",
			Subpart:  "({i})",
			Item:     "({A})",
		},
		IndentCmPerLevel: CanonicalIndentCm,
		MarksPattern:     "({n} {unit})",
		ColonSpacing:     true,
		MetadataLabels:   append([]string(nil), DefaultMetadataLabels...),
		Margins:          model.Margins{Top: 2.5, Bottom: 2.5, Left: 3.0, Right: 2.5},
		HeaderText:       "SOUTHERN UNIVERSITY COLLEGE",
		FooterText:       "Page",
		HeaderStyle:      model.TextStyle{Bold: true, Alignment: "center", SizePt: 12},
		FooterStyle:      model.TextStyle{Alignment: "center", SizePt: 10},
	}
}

// IndentCm returns the indentation configured for level.
func (r *RuleSet) IndentCm(level int) float64 {
	return r.IndentCmPerLevel[model.ClampIndentLevel(level)]
}

// Labels returns the metadata labels, or the defaults when none are set.
func (r *RuleSet) Labels() []string {
	if len(r.MetadataLabels) == 0 {
		return DefaultMetadataLabels
	}
	return r.MetadataLabels
}

// RenderMarks renders a marks annotation for n marks.
func (r *RuleSet) RenderMarks(n int) string {
	unit := "marks"
	if n == 1 {
		unit = "mark"
	}
	return strings.NewReplacer(
		PlaceholderNumber, fmt.Sprint(n),
		PlaceholderUnit, unit,
	).Replace(r.MarksPattern)
}

// Clone returns a deep copy of the rule set.
func (r *RuleSet) Clone() *RuleSet {
	if r == nil {
		return nil
	}
	c := *r
	c.MetadataLabels = append([]string(nil), r.MetadataLabels...)
	return &c
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the rule set and returns a *TemplateResolutionError when
// it is nil or invalid.
func Validate(r *RuleSet) error {
	if r == nil {
		return &TemplateResolutionError{Reason: "rule set is nil"}
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return &TemplateResolutionError{
				TemplateID: r.ID,
				Reason:     "invalid fields: " + strings.Join(fields, ", "),
				Err:        err,
			}
		}
		return &TemplateResolutionError{TemplateID: r.ID, Reason: "validation failed", Err: err}
	}
	return nil
}
