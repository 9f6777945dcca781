package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

var (
	// reMarks matches one marks annotation and the whitespace before it.
	reMarks = regexp.MustCompile(`(?i)\s*[\[(]\s*(\d+)\s*marks?\s*[\])]`)

	// reTotal matches a whole line that states the paper or question total.
	reTotal = regexp.MustCompile(`(?i)^\s*[\[(]?\s*total(?:\s+marks?)?\s*[:=]?\s*(\d+)\s*(?:marks?)?\s*[\])]?\s*$`)
)

// Marks rewrites marks annotations to the rule set's pattern and total lines
// to "[Total : n marks]".
type Marks struct{}

// NewMarks creates a marks notation normalizer.
func NewMarks() *Marks {
	return &Marks{}
}

// Name implements Normalizer.
func (m *Marks) Name() string { return "marks" }

// Normalize implements Normalizer.
func (m *Marks) Normalize(blocks []model.Block, rs *rules.RuleSet) ([]model.Block, []model.Change) {
	return rewriteBlocks(blocks, model.CategoryMarks, func(text string) (string, bool) {
		return RewriteMarks(text, rs)
	})
}

// RewriteMarks rewrites the marks notation of one line. ok is false when the
// line carries no marks annotation.
func RewriteMarks(text string, rs *rules.RuleSet) (string, bool) {
	if sub := reTotal.FindStringSubmatch(text); sub != nil {
		n, _ := strconv.Atoi(sub[1])
		return renderTotal(n), true
	}

	locs := reMarks.FindAllStringSubmatchIndex(text, -1)
	if locs == nil {
		return text, false
	}
	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		sb.WriteString(text[last:loc[0]])
		n, _ := strconv.Atoi(text[loc[2]:loc[3]])
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(rs.RenderMarks(n))
		last = loc[1]
	}
	sb.WriteString(text[last:])
	return strings.TrimRightFunc(sb.String(), unicode.IsSpace), true
}

func renderTotal(n int) string {
	unit := "marks"
	if n == 1 {
		unit = "mark"
	}
	return "[Total : " + strconv.Itoa(n) + " " + unit + "]"
}
