// Package model provides the intermediate representation (IR) for exam papers
// that are being normalized against an institutional template.
//
// Decoders (see the docx package) produce a [Document]; the formatter consumes
// it and produces a [NormalizationResult] without mutating its input.
//
// # Document Structure
//
// A [Document] is an ordered sequence of [Block] values plus the page setup
// held in its [Section]:
//
//	doc := model.NewDocument()
//	doc.AddBlock(model.Block{Text: "Q1. Explain recursion."})
//	doc.Section.HeaderText = "SOUTHERN UNIVERSITY COLLEGE"
//
// # Blocks
//
// A [Block] is one paragraph-equivalent unit. It carries its text, a
// canonical indentation level (0-3) and the [InlineObject] evidence a decoder
// found inside it (equations, images, field codes). A block whose Protected
// flag is set is never modified by any normalizer.
//
// # Changes
//
// Every mutation a normalizer applies is recorded as a [Change] with a
// [Category]. Counting changes per category is the basis of the report.
//
// # Indentation
//
// [IndentCm] is the single pure mapping from level to centimetres:
// level 0 = 0 cm, 1 = 1.5 cm, 2 = 3.0 cm, 3 = 4.5 cm.
package model
