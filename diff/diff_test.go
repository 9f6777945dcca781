package diff

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

func kinds(entries []Entry) []Kind {
	out := make([]Kind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestCompute(t *testing.T) {
	t.Run("Should report identical input as equal lines", func(t *testing.T) {
		lines := []string{"a", "", "b"}
		entries := Compute(lines, lines)
		assert.Equal(t, []Kind{Equal, Equal, Equal}, kinds(entries))
		assert.Equal(t, 2, entries[1].LineBefore)
		assert.Equal(t, 2, entries[1].LineAfter)
	})

	t.Run("Should pair a changed line into a replace", func(t *testing.T) {
		before := []string{"header", "Q1) Explain recursion.", "footer"}
		after := []string{"header", "Q1. Explain recursion.", "footer"}
		entries := Compute(before, after)
		require.Equal(t, []Kind{Equal, Replace, Equal}, kinds(entries))
		assert.Equal(t, Entry{
			Kind:       Replace,
			LineBefore: 2,
			LineAfter:  2,
			Text:       "Q1. Explain recursion.",
			OldText:    "Q1) Explain recursion.",
		}, entries[1])
	})

	t.Run("Should emit surplus deletions and insertions after the replaces", func(t *testing.T) {
		entries := Compute([]string{"x", "a", "b", "c", "y"}, []string{"x", "A", "y"})
		assert.Equal(t, []Kind{Equal, Replace, Delete, Delete, Equal}, kinds(entries))

		entries = Compute([]string{"x", "a", "y"}, []string{"x", "A", "B", "y"})
		assert.Equal(t, []Kind{Equal, Replace, Insert, Equal}, kinds(entries))
		assert.Equal(t, 0, entries[2].LineBefore)
		assert.Equal(t, 3, entries[2].LineAfter)
	})

	t.Run("Should keep equal anchors inside the changed region", func(t *testing.T) {
		before := []string{"a", "b", "keep", "c", "d"}
		after := []string{"A", "keep", "C", "D", "E"}
		entries := Compute(before, after)
		assert.Equal(t, []Kind{Replace, Delete, Equal, Replace, Replace, Insert}, kinds(entries))
	})

	t.Run("Should handle empty sides", func(t *testing.T) {
		assert.Empty(t, Compute(nil, nil))
		assert.Equal(t, []Kind{Insert, Insert}, kinds(Compute(nil, []string{"a", "b"})))
		assert.Equal(t, []Kind{Delete}, kinds(Compute([]string{"a"}, nil)))
	})

	t.Run("Should be deterministic", func(t *testing.T) {
		before := []string{"a", "b", "a", "c", "b", "a"}
		after := []string{"c", "a", "b", "b", "a", "d"}
		first := Compute(before, after)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Compute(before, after))
		}
	})
}

func TestCompute_LargeRegion(t *testing.T) {
	old := maxCells
	maxCells = 4
	t.Cleanup(func() { maxCells = old })

	before := []string{"title", "a", "b", "c", "end"}
	after := []string{"title", "c", "x", "end"}

	t.Run("Should report an oversized region as replaced", func(t *testing.T) {
		entries := Compute(before, after)
		assert.Equal(t, []Kind{Equal, Replace, Replace, Delete, Equal}, kinds(entries))
		assert.Equal(t, "a", entries[1].OldText)
		assert.Equal(t, "c", entries[1].Text)
	})

	t.Run("Should still reconstruct the normalized lines", func(t *testing.T) {
		got, err := Apply(before, Compute(before, after))
		require.NoError(t, err)
		assert.Equal(t, after, got)
	})
}

func TestApply(t *testing.T) {
	cases := []struct {
		name          string
		before, after []string
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}},
		{"single replace", []string{"a", "b", "c"}, []string{"a", "B", "c"}},
		{"all new", nil, []string{"x", "y"}},
		{"all removed", []string{"x", "y"}, nil},
		{"mixed", []string{"a", "b", "c", "d", "e", "f"}, []string{"b", "c", "X", "e", "f", "g", "h"}},
		{"repeats", []string{"", "", "a", "", ""}, []string{"", "a", "a", ""}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("Should round trip %s", tc.name), func(t *testing.T) {
			got, err := Apply(tc.before, Compute(tc.before, tc.after))
			require.NoError(t, err)
			if len(tc.after) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.after, got)
		})
	}

	t.Run("Should reject entries computed from another document", func(t *testing.T) {
		entries := Compute([]string{"a", "b"}, []string{"a", "c"})
		_, err := Apply([]string{"a", "z"}, entries)
		assert.Error(t, err)

		_, err = Apply([]string{"a", "b", "extra"}, entries)
		assert.Error(t, err)
	})
}

func TestHunks(t *testing.T) {
	t.Run("Should return no hunks when nothing changed", func(t *testing.T) {
		assert.Empty(t, Hunks(Compute([]string{"a"}, []string{"a"}), DefaultContext))
	})

	t.Run("Should window changes with context lines", func(t *testing.T) {
		before := make([]string, 20)
		for i := range before {
			before[i] = fmt.Sprintf("line %d", i+1)
		}
		after := append([]string(nil), before...)
		after[1] = "changed 2"
		after[15] = "changed 16"

		entries := Compute(before, after)
		hunks := Hunks(entries, 3)
		require.Len(t, hunks, 2)

		assert.Equal(t, 1, hunks[0].BeforeStart)
		assert.Equal(t, 5, hunks[0].BeforeLines)
		assert.Equal(t, "@@ -1,5 +1,5 @@", hunks[0].Header())

		assert.Equal(t, 13, hunks[1].BeforeStart)
		assert.Equal(t, 7, hunks[1].BeforeLines)
		assert.Len(t, hunks[1].Entries, 7)

		assert.Len(t, entries, 20)
	})

	t.Run("Should merge windows that touch", func(t *testing.T) {
		before := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
		after := []string{"1", "X", "3", "4", "5", "6", "7", "Y", "9", "10"}
		hunks := Hunks(Compute(before, after), 3)
		require.Len(t, hunks, 1)
		assert.Equal(t, 10, hunks[0].BeforeLines)
	})

	t.Run("Should report the line before a pure insertion", func(t *testing.T) {
		hunks := Hunks(Compute(nil, []string{"a"}), 3)
		require.Len(t, hunks, 1)
		assert.Equal(t, "@@ -0,0 +1,1 @@", hunks[0].Header())
	})
}

func TestLines(t *testing.T) {
	doc := model.NewDocument()
	doc.AddBlock(model.Block{Text: "Q1. Intro"})
	doc.AddBlock(model.Block{Text: ""})
	assert.Equal(t, []string{"Q1. Intro", ""}, Lines(doc))
	assert.Nil(t, Lines(nil))
}

func TestCount(t *testing.T) {
	s := Count(Compute([]string{"a", "b", "c"}, []string{"a", "B", "c", "d"}))
	assert.Equal(t, Stats{Equal: 2, Replace: 1, Insert: 1}, s)
	assert.Equal(t, 2, s.Changed())
}

func TestSides(t *testing.T) {
	before := []string{"a", "b", "c"}
	after := []string{"a", "B", "d", "c"}
	gotBefore, gotAfter := Sides(Compute(before, after))
	assert.Equal(t, before, gotBefore)
	assert.Equal(t, after, gotAfter)
}
