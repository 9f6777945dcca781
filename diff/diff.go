// Package diff computes a deterministic line diff between the original and
// the normalized document.
//
// Lines are block texts, one per block, blank blocks included. Alignment is
// a longest-common-subsequence walk over the region left after trimming the
// common prefix and suffix. At every step a matching line is taken first,
// otherwise a deletion is preferred over an insertion. Each changed region
// between two equal lines is then emitted as contiguous replace entries,
// followed by the surplus deletions or insertions.
//
// The LCS table needs one int per pair of changed lines. When the changed
// region exceeds MaxTableCells pairs (about 2000 by 2000 lines) no table is
// built and the whole region is reported as replaced; Apply still
// reconstructs the normalized lines exactly.
package diff

import (
	"fmt"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

// Kind classifies a diff entry.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
	Replace
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for c := Equal; c <= Replace; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown diff kind %q", b)
}

// Entry is one line of the diff. Line numbers are 1-based; 0 means the entry
// has no line on that side. OldText is set for Replace only; Text is always
// the line as it reads after normalization (or the removed line for Delete).
type Entry struct {
	Kind       Kind   `json:"kind"`
	LineBefore int    `json:"line_before"`
	LineAfter  int    `json:"line_after"`
	Text       string `json:"text"`
	OldText    string `json:"old_text,omitempty"`
}

// Changed reports whether the entry is anything other than Equal.
func (e Entry) Changed() bool {
	return e.Kind != Equal
}

// Lines flattens a document into diff lines.
func Lines(doc *model.Document) []string {
	if doc == nil {
		return nil
	}
	return doc.Lines()
}

// op is one step of the LCS walk before regions are paired.
type op struct {
	kind Kind
	i, j int // indices into before/after
}

// Compute returns the diff entries that turn before into after. The result
// is fully determined by its inputs.
func Compute(before, after []string) []Entry {
	prefix := 0
	for prefix < len(before) && prefix < len(after) && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(before)-prefix && suffix < len(after)-prefix &&
		before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}

	ops := make([]op, 0, len(before)+len(after))
	for k := 0; k < prefix; k++ {
		ops = append(ops, op{kind: Equal, i: k, j: k})
	}
	ops = append(ops, walk(before, after, prefix, len(before)-suffix, prefix, len(after)-suffix)...)
	for k := suffix; k > 0; k-- {
		ops = append(ops, op{kind: Equal, i: len(before) - k, j: len(after) - k})
	}

	return pair(ops, before, after)
}

// MaxTableCells bounds the size of the LCS table built for one changed
// region.
const MaxTableCells = 4 << 20

// maxCells is MaxTableCells; tests lower it.
var maxCells = MaxTableCells

// walk aligns before[i0:i1] with after[j0:j1].
func walk(before, after []string, i0, i1, j0, j1 int) []op {
	n, m := i1-i0, j1-j0
	if n > 0 && m > 0 && n > maxCells/m {
		ops := make([]op, 0, n+m)
		for i := i0; i < i1; i++ {
			ops = append(ops, op{kind: Delete, i: i, j: -1})
		}
		for j := j0; j < j1; j++ {
			ops = append(ops, op{kind: Insert, i: -1, j: j})
		}
		return ops
	}
	// lcs[i][j] is the LCS length of before[i0+i:i1] and after[j0+j:j1].
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if before[i0+i] == after[j0+j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var ops []op
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && before[i0+i] == after[j0+j]:
			ops = append(ops, op{kind: Equal, i: i0 + i, j: j0 + j})
			i++
			j++
		case i < n && (j >= m || lcs[i+1][j] >= lcs[i][j+1]):
			ops = append(ops, op{kind: Delete, i: i0 + i, j: -1})
			i++
		default:
			ops = append(ops, op{kind: Insert, i: -1, j: j0 + j})
			j++
		}
	}
	return ops
}

// pair turns every run of deletions and insertions between two equal lines
// into replace entries plus the surplus.
func pair(ops []op, before, after []string) []Entry {
	entries := make([]Entry, 0, len(ops))
	var dels, ins []int

	flush := func() {
		k := 0
		for ; k < len(dels) && k < len(ins); k++ {
			entries = append(entries, Entry{
				Kind:       Replace,
				LineBefore: dels[k] + 1,
				LineAfter:  ins[k] + 1,
				Text:       after[ins[k]],
				OldText:    before[dels[k]],
			})
		}
		for _, i := range dels[k:] {
			entries = append(entries, Entry{Kind: Delete, LineBefore: i + 1, Text: before[i]})
		}
		for _, j := range ins[k:] {
			entries = append(entries, Entry{Kind: Insert, LineAfter: j + 1, Text: after[j]})
		}
		dels, ins = dels[:0], ins[:0]
	}

	for _, o := range ops {
		switch o.kind {
		case Delete:
			dels = append(dels, o.i)
		case Insert:
			ins = append(ins, o.j)
		default:
			flush()
			entries = append(entries, Entry{
				Kind:       Equal,
				LineBefore: o.i + 1,
				LineAfter:  o.j + 1,
				Text:       before[o.i],
			})
		}
	}
	flush()
	return entries
}

// Apply replays entries over before and returns the reconstructed after
// lines. It fails when the entries were not computed from before.
func Apply(before []string, entries []Entry) ([]string, error) {
	after := make([]string, 0, len(entries))
	pos := 0
	consume := func(e Entry, want string) error {
		if pos >= len(before) || e.LineBefore != pos+1 || before[pos] != want {
			return fmt.Errorf("entry %s at line %d does not match the original", e.Kind, e.LineBefore)
		}
		pos++
		return nil
	}

	for _, e := range entries {
		switch e.Kind {
		case Equal:
			if err := consume(e, e.Text); err != nil {
				return nil, err
			}
			after = append(after, e.Text)
		case Delete:
			if err := consume(e, e.Text); err != nil {
				return nil, err
			}
		case Replace:
			if err := consume(e, e.OldText); err != nil {
				return nil, err
			}
			after = append(after, e.Text)
		case Insert:
			after = append(after, e.Text)
		default:
			return nil, fmt.Errorf("unknown diff kind %d", int(e.Kind))
		}
	}
	if pos != len(before) {
		return nil, fmt.Errorf("entries cover %d of %d original lines", pos, len(before))
	}
	return after, nil
}

// Sides reconstructs the before and after lines that entries describe.
func Sides(entries []Entry) (before, after []string) {
	for _, e := range entries {
		switch e.Kind {
		case Equal:
			before = append(before, e.Text)
			after = append(after, e.Text)
		case Delete:
			before = append(before, e.Text)
		case Insert:
			after = append(after, e.Text)
		case Replace:
			before = append(before, e.OldText)
			after = append(after, e.Text)
		}
	}
	return before, after
}

// Stats counts entries per kind.
type Stats struct {
	Equal   int `json:"equal"`
	Insert  int `json:"insert"`
	Delete  int `json:"delete"`
	Replace int `json:"replace"`
}

// Changed returns the number of entries that are not Equal.
func (s Stats) Changed() int {
	return s.Insert + s.Delete + s.Replace
}

// Count returns the per-kind statistics of entries.
func Count(entries []Entry) Stats {
	var s Stats
	for _, e := range entries {
		switch e.Kind {
		case Equal:
			s.Equal++
		case Insert:
			s.Insert++
		case Delete:
			s.Delete++
		case Replace:
			s.Replace++
		}
	}
	return s
}
