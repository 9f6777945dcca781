package normalize

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// Spacing enforces "LABEL : value" on metadata lines.
type Spacing struct{}

// NewSpacing creates a colon spacing normalizer.
func NewSpacing() *Spacing {
	return &Spacing{}
}

// Name implements Normalizer.
func (s *Spacing) Name() string { return "spacing" }

// Normalize implements Normalizer. It does nothing when the rule set
// disables colon spacing.
func (s *Spacing) Normalize(blocks []model.Block, rs *rules.RuleSet) ([]model.Block, []model.Change) {
	if !rs.ColonSpacing {
		return model.CloneBlocks(blocks), nil
	}

	// A Caser is stateful; one per call.
	fold := cases.Fold()
	labels := make(map[string]bool, len(rs.Labels()))
	for _, l := range rs.Labels() {
		labels[fold.String(collapseSpace(l))] = true
	}

	return rewriteBlocks(blocks, model.CategorySpacing, func(text string) (string, bool) {
		label, value, found := strings.Cut(text, ":")
		if !found {
			return text, false
		}
		label = collapseSpace(label)
		if !labels[fold.String(label)] {
			return text, false
		}
		value = collapseSpace(value)
		if value == "" {
			return label + " :", true
		}
		return label + " : " + value, true
	})
}

// collapseSpace trims s and replaces every whitespace run with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
