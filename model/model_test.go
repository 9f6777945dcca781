package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

// ============================================================================
// Indentation Tests
// ============================================================================

func TestIndentCm(t *testing.T) {
	tests := []struct {
		level    int
		expected float64
	}{
		{0, 0},
		{1, 1.5},
		{2, 3.0},
		{3, 4.5},
		{-1, 0},
		{7, 4.5},
	}

	for _, tt := range tests {
		if got := IndentCm(tt.level); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("IndentCm(%d) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}

func TestLevelForCm(t *testing.T) {
	tests := []struct {
		name     string
		cm       float64
		expected int
	}{
		{"zero", 0, 0},
		{"negative", -2, 0},
		{"NaN", math.NaN(), 0},
		{"just under one level", 1.4, 1},
		{"one level", 1.5, 1},
		{"two levels", 3.0, 2},
		{"between two and three", 3.9, 3},
		{"beyond the deepest level", 12, 3},
		{"rounds down", 0.7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelForCm(tt.cm); got != tt.expected {
				t.Errorf("LevelForCm(%v) = %d, want %d", tt.cm, got, tt.expected)
			}
		})
	}
}

func TestValidIndentLevel(t *testing.T) {
	for level := 0; level <= MaxIndentLevel; level++ {
		if !ValidIndentLevel(level) {
			t.Errorf("expected level %d to be valid", level)
		}
	}
	if ValidIndentLevel(-1) || ValidIndentLevel(MaxIndentLevel+1) {
		t.Error("expected out-of-range levels to be invalid")
	}
}

// ============================================================================
// Block Tests
// ============================================================================

func TestBlockIsBlank(t *testing.T) {
	tests := []struct {
		name     string
		block    Block
		expected bool
	}{
		{"empty", Block{}, true},
		{"whitespace", Block{Text: " \t "}, true},
		{"text", Block{Text: "Q1."}, false},
		{"object only", Block{Objects: []InlineObject{{Kind: ObjectImage}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.block.IsBlank(); got != tt.expected {
				t.Errorf("IsBlank() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBlockHasObject(t *testing.T) {
	b := Block{Objects: []InlineObject{{Kind: ObjectField, Name: "PAGE"}, {Kind: ObjectEquation}}}
	if !b.HasObject(ObjectEquation) {
		t.Error("expected equation object")
	}
	if b.HasObject(ObjectImage) {
		t.Error("did not expect image object")
	}
	if got := (Block{IndentLevel: 2}).IndentCm(); got != 3.0 {
		t.Errorf("IndentCm() = %v, want 3.0", got)
	}
}

func TestObjectKindText(t *testing.T) {
	for k := ObjectEquation; k <= ObjectTable; k++ {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", k, err)
		}
		var back ObjectKind
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != k {
			t.Errorf("round trip of %s gave %s", k, back)
		}
	}

	var k ObjectKind = ObjectImage
	if err := k.UnmarshalText([]byte("hologram")); err != nil {
		t.Fatal(err)
	}
	if k != ObjectUnknown {
		t.Errorf("expected unknown kind, got %s", k)
	}
}

func TestCloneBlocks(t *testing.T) {
	if CloneBlocks(nil) != nil {
		t.Error("expected nil for nil input")
	}

	orig := []Block{{Text: "x = 1", Objects: []InlineObject{{Kind: ObjectEquation}}}}
	c := CloneBlocks(orig)
	c[0].Text = "changed"
	c[0].Objects[0].Kind = ObjectImage

	if orig[0].Text != "x = 1" || orig[0].Objects[0].Kind != ObjectEquation {
		t.Error("CloneBlocks shares state with its input")
	}
}

// ============================================================================
// Document Tests
// ============================================================================

func sampleDocument() *Document {
	doc := NewDocument()
	doc.Metadata.Custom["revision"] = "3"
	doc.Section.HeaderText = "SOUTHERN UNIVERSITY COLLEGE"
	doc.AddBlock(Block{Text: "Q1. Explain recursion."})
	doc.AddBlock(Block{})
	doc.AddBlock(Block{Text: "x = (a+b)/c", Protected: true, Objects: []InlineObject{{Kind: ObjectEquation}}})
	return doc
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument()
	if doc.Metadata.Custom == nil {
		t.Error("expected Custom metadata to be initialized")
	}
	if doc.BlockCount() != 0 {
		t.Errorf("expected no blocks, got %d", doc.BlockCount())
	}
}

func TestDocumentLines(t *testing.T) {
	doc := sampleDocument()

	lines := doc.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[1] != "" {
		t.Errorf("expected the blank block to be kept, got %q", lines[1])
	}
	if got := doc.ExtractText(); got != strings.Join(lines, "\n") {
		t.Errorf("ExtractText() = %q", got)
	}
	if doc.ProtectedCount() != 1 {
		t.Errorf("expected 1 protected block, got %d", doc.ProtectedCount())
	}
}

func TestDocumentClone(t *testing.T) {
	doc := sampleDocument()
	c := doc.Clone()

	c.Blocks[0].Text = "changed"
	c.Blocks[2].Objects[0].Kind = ObjectImage
	c.Metadata.Custom["revision"] = "4"
	c.Section.HeaderText = "OTHER"

	if doc.Blocks[0].Text != "Q1. Explain recursion." {
		t.Error("clone shares block text")
	}
	if doc.Blocks[2].Objects[0].Kind != ObjectEquation {
		t.Error("clone shares inline objects")
	}
	if doc.Metadata.Custom["revision"] != "3" {
		t.Error("clone shares custom metadata")
	}
	if doc.Section.HeaderText != "SOUTHERN UNIVERSITY COLLEGE" {
		t.Error("clone shares the section")
	}

	var nilDoc *Document
	if nilDoc.Clone() != nil {
		t.Error("expected nil clone of a nil document")
	}
}

func TestDocumentJSON(t *testing.T) {
	data, err := json.Marshal(sampleDocument())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"kind":"equation"`) {
		t.Errorf("expected object kinds to be encoded by name: %s", data)
	}
}

func TestMargins(t *testing.T) {
	a := Margins{Top: 2.5, Bottom: 2.5, Left: 3.0, Right: 2.5}
	if !a.Equal(Margins{Top: 2.501, Bottom: 2.5, Left: 2.999, Right: 2.5}) {
		t.Error("expected margins within 0.005 cm to be equal")
	}
	if a.Equal(Margins{Top: 2.54, Bottom: 2.5, Left: 3.0, Right: 2.5}) {
		t.Error("expected 2.54 and 2.5 to differ")
	}
	if got := a.String(); got != "top 2.50 cm, bottom 2.50 cm, left 3.00 cm, right 2.50 cm" {
		t.Errorf("String() = %q", got)
	}
}

// ============================================================================
// Change Tests
// ============================================================================

func TestCountByCategory(t *testing.T) {
	changes := []Change{
		{BlockIndex: 0, Category: CategoryNumbering},
		{BlockIndex: 1, Category: CategoryNumbering},
		{BlockIndex: SectionIndex, Category: CategoryHeader},
	}

	counts := CountByCategory(changes)
	if len(counts) != len(Categories) {
		t.Errorf("expected every category, got %v", counts)
	}
	if counts[CategoryNumbering] != 2 || counts[CategoryHeader] != 1 || counts[CategoryMarks] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}

	res := &NormalizationResult{Changes: changes}
	if res.ChangeCounts()[CategoryNumbering] != 2 {
		t.Error("ChangeCounts disagrees with CountByCategory")
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("expected %s to be valid", c)
		}
	}
	if Category("layout").Valid() {
		t.Error("expected unknown category to be invalid")
	}
}

func TestChangeString(t *testing.T) {
	block := Change{BlockIndex: 2, Category: CategoryMarks, Before: "5m", After: "(5 marks)"}
	if got := block.String(); got != `[marks] block 2: "5m" -> "(5 marks)"` {
		t.Errorf("String() = %q", got)
	}
	section := Change{BlockIndex: SectionIndex, Category: CategoryHeader, Before: "", After: "SUC"}
	if got := section.String(); got != `[header] section: "" -> "SUC"` {
		t.Errorf("String() = %q", got)
	}
	amb := Ambiguity{BlockIndex: 4, Token: "i)", Level: 2, Reason: "roman"}
	if got := amb.String(); got != `block 4: token "i)" resolved to level 2 (roman)` {
		t.Errorf("String() = %q", got)
	}
}
