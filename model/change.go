package model

import "fmt"

// Category classifies a change applied by a normalizer
type Category string

const (
	CategoryNumbering   Category = "numbering"
	CategoryMarks       Category = "marks"
	CategorySpacing     Category = "spacing"
	CategoryIndentation Category = "indentation"
	CategoryHeader      Category = "header"
)

// Categories lists every category in reporting order.
var Categories = []Category{
	CategoryNumbering,
	CategoryMarks,
	CategorySpacing,
	CategoryIndentation,
	CategoryHeader,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// SectionIndex is the BlockIndex used for changes that apply to the section
// (header, footer, margins) rather than to a block.
const SectionIndex = -1

// Change is a recorded, categorized mutation applied to one block.
type Change struct {
	BlockIndex int      `json:"block_index"`
	Category   Category `json:"category"`
	Before     string   `json:"before"`
	After      string   `json:"after"`
}

func (c Change) String() string {
	if c.BlockIndex == SectionIndex {
		return fmt.Sprintf("[%s] section: %q -> %q", c.Category, c.Before, c.After)
	}
	return fmt.Sprintf("[%s] block %d: %q -> %q", c.Category, c.BlockIndex, c.Before, c.After)
}

// CountByCategory returns the number of changes per category. Every known
// category is present in the result, with zero when no change matched.
func CountByCategory(changes []Change) map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	for _, ch := range changes {
		counts[ch.Category]++
	}
	return counts
}

// Ambiguity records a block whose numbering token could belong to more than
// one level. The level chosen follows a fixed policy; the note is passed on
// to the compliance scorer for review.
type Ambiguity struct {
	BlockIndex int    `json:"block_index"`
	Token      string `json:"token"`
	Level      int    `json:"level"`
	Reason     string `json:"reason"`
}

func (a Ambiguity) String() string {
	return fmt.Sprintf("block %d: token %q resolved to level %d (%s)", a.BlockIndex, a.Token, a.Level, a.Reason)
}

// NormalizationResult is the output of one formatting call.
type NormalizationResult struct {
	Document    *Document   `json:"document"`
	Changes     []Change    `json:"changes"`
	Ambiguities []Ambiguity `json:"ambiguities,omitempty"`
}

// ChangeCounts returns the per-category change counts of the result.
func (r *NormalizationResult) ChangeCounts() map[Category]int {
	return CountByCategory(r.Changes)
}
