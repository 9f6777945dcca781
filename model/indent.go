package model

import "math"

// MaxIndentLevel is the deepest canonical indentation level.
const MaxIndentLevel = 3

// indentStepCm is the width of one indentation level.
const indentStepCm = 1.5

// ValidIndentLevel reports whether level is one of 0, 1, 2, 3.
func ValidIndentLevel(level int) bool {
	return level >= 0 && level <= MaxIndentLevel
}

// IndentCm maps a canonical indentation level to centimetres:
// 0 -> 0, 1 -> 1.5, 2 -> 3.0, 3 -> 4.5. Out-of-range levels are clamped.
func IndentCm(level int) float64 {
	return float64(ClampIndentLevel(level)) * indentStepCm
}

// ClampIndentLevel clamps level into the canonical range.
func ClampIndentLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxIndentLevel {
		return MaxIndentLevel
	}
	return level
}

// LevelForCm returns the canonical level nearest to an indentation given in
// centimetres.
func LevelForCm(cm float64) int {
	if cm <= 0 || math.IsNaN(cm) {
		return 0
	}
	return ClampIndentLevel(int(math.Round(cm / indentStepCm)))
}
