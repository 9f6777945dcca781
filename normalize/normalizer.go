// Package normalize provides the text normalizers applied to exam paper
// blocks: question numbering, marks notation and metadata colon spacing,
// plus the math guard that marks blocks as protected before any of them run.
//
// Every normalizer is a pure function of its input: blocks are copied, never
// modified in place, and protected blocks are passed through untouched.
package normalize

import (
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// Normalizer is one text normalization stage.
type Normalizer interface {
	// Name identifies the stage in logs.
	Name() string
	// Normalize returns the normalized copy of blocks and the changes made.
	Normalize(blocks []model.Block, rs *rules.RuleSet) ([]model.Block, []model.Change)
}

// lineRewriter rewrites the text of one block. ok is false when the line
// did not match and must be left alone.
type lineRewriter func(text string) (out string, ok bool)

// rewriteBlocks applies fn to every unprotected block and records a change
// of category cat for each block whose text changed.
func rewriteBlocks(blocks []model.Block, cat model.Category, fn lineRewriter) ([]model.Block, []model.Change) {
	out := model.CloneBlocks(blocks)
	var changes []model.Change
	for i := range out {
		if out[i].Protected || out[i].IsBlank() {
			continue
		}
		next, ok := fn(out[i].Text)
		if !ok || next == out[i].Text {
			continue
		}
		changes = append(changes, model.Change{
			BlockIndex: i,
			Category:   cat,
			Before:     out[i].Text,
			After:      next,
		})
		out[i].Text = next
	}
	return out, changes
}
