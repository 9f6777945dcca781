package normalize

import "github.com/lerlerchan/ExamOps-Orchestrator/model"

// MathGuard flags blocks that contain non-text content as protected.
type MathGuard struct {
	kinds map[model.ObjectKind]bool
}

// DefaultProtectedKinds lists the object kinds that make a block protected.
var DefaultProtectedKinds = []model.ObjectKind{
	model.ObjectEquation,
	model.ObjectImage,
	model.ObjectField,
	model.ObjectEmbedded,
	model.ObjectChart,
	model.ObjectTable,
}

// NewMathGuard creates a guard protecting DefaultProtectedKinds.
func NewMathGuard() *MathGuard {
	return NewMathGuardWithKinds(DefaultProtectedKinds...)
}

// NewMathGuardWithKinds creates a guard protecting the given kinds only.
func NewMathGuardWithKinds(kinds ...model.ObjectKind) *MathGuard {
	g := &MathGuard{kinds: make(map[model.ObjectKind]bool, len(kinds))}
	for _, k := range kinds {
		g.kinds[k] = true
	}
	return g
}

// Classify reports whether b must be protected. A block that is already
// protected stays protected.
func (g *MathGuard) Classify(b model.Block) bool {
	if b.Protected {
		return true
	}
	for _, o := range b.Objects {
		if g.kinds[o.Kind] {
			return true
		}
	}
	return false
}

// Protect returns a copy of blocks with Protected set on every block
// Classify accepts. It never clears the flag.
func (g *MathGuard) Protect(blocks []model.Block) []model.Block {
	out := model.CloneBlocks(blocks)
	for i := range out {
		if g.Classify(out[i]) {
			out[i].Protected = true
		}
	}
	return out
}
