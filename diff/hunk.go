package diff

import "fmt"

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// Hunk is a window of entries around one or more changes. Start lines are
// 1-based; a side with no lines reports the line before the hunk, as in
// unified diff headers.
type Hunk struct {
	BeforeStart int     `json:"before_start"`
	BeforeLines int     `json:"before_lines"`
	AfterStart  int     `json:"after_start"`
	AfterLines  int     `json:"after_lines"`
	Entries     []Entry `json:"entries"`
}

// Header returns the unified diff range line of the hunk.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.BeforeStart, h.BeforeLines, h.AfterStart, h.AfterLines)
}

// Hunks groups entries into hunks with context unchanged lines on each side
// of a change. Windows that touch or overlap are merged. Entries outside
// every window are left out of the hunks only; the entry list itself is not
// modified.
func Hunks(entries []Entry, context int) []Hunk {
	if context < 0 {
		context = 0
	}

	// Lines consumed on each side before entry k.
	beforePos := make([]int, len(entries)+1)
	afterPos := make([]int, len(entries)+1)
	for k, e := range entries {
		beforePos[k+1] = beforePos[k]
		afterPos[k+1] = afterPos[k]
		if e.Kind != Insert {
			beforePos[k+1]++
		}
		if e.Kind != Delete {
			afterPos[k+1]++
		}
	}

	var hunks []Hunk
	start, end := -1, -1
	emit := func() {
		if start < 0 {
			return
		}
		h := Hunk{
			BeforeLines: beforePos[end+1] - beforePos[start],
			AfterLines:  afterPos[end+1] - afterPos[start],
			Entries:     append([]Entry(nil), entries[start:end+1]...),
		}
		h.BeforeStart = beforePos[start]
		if h.BeforeLines > 0 {
			h.BeforeStart++
		}
		h.AfterStart = afterPos[start]
		if h.AfterLines > 0 {
			h.AfterStart++
		}
		hunks = append(hunks, h)
	}

	for k, e := range entries {
		if !e.Changed() {
			continue
		}
		lo := max(k-context, 0)
		hi := min(k+context, len(entries)-1)
		if start >= 0 && lo <= end+1 {
			end = max(end, hi)
			continue
		}
		emit()
		start, end = lo, hi
	}
	emit()
	return hunks
}
