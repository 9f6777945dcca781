package model

import (
	"strings"
	"unicode"
)

// ObjectKind represents the kind of non-text content found inside a block
type ObjectKind int

const (
	ObjectUnknown ObjectKind = iota
	ObjectEquation
	ObjectImage
	ObjectField
	ObjectEmbedded
	ObjectChart
	ObjectTable
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectEquation:
		return "equation"
	case ObjectImage:
		return "image"
	case ObjectField:
		return "field"
	case ObjectEmbedded:
		return "embedded"
	case ObjectChart:
		return "chart"
	case ObjectTable:
		return "table"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ObjectKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to ObjectUnknown.
func (k *ObjectKind) UnmarshalText(b []byte) error {
	*k = ObjectUnknown
	for c := ObjectEquation; c <= ObjectTable; c++ {
		if c.String() == string(b) {
			*k = c
			break
		}
	}
	return nil
}

// InlineObject is structural evidence of non-text content inside a block.
type InlineObject struct {
	Kind ObjectKind `json:"kind"`
	// Name is a decoder-specific description: image part name, field
	// instruction, object program id.
	Name string `json:"name,omitempty"`
	// Width and Height are pixel dimensions for images when known.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Block is one paragraph-equivalent unit of document content.
type Block struct {
	Text        string `json:"text"`
	IndentLevel int    `json:"indent_level"`
	// SourceIndentCm is the left indentation the decoder read, 0 when the
	// paragraph had none. Normalization changes IndentLevel only.
	SourceIndentCm float64 `json:"source_indent_cm,omitempty"`
	// Protected is set once by the math guard and never cleared.
	Protected bool           `json:"protected"`
	Objects   []InlineObject `json:"objects,omitempty"`
}

// IsBlank reports whether the block has no visible text and no objects.
func (b Block) IsBlank() bool {
	if len(b.Objects) > 0 {
		return false
	}
	return strings.TrimFunc(b.Text, unicode.IsSpace) == ""
}

// HasObject reports whether the block carries an object of the given kind.
func (b Block) HasObject(kind ObjectKind) bool {
	for _, o := range b.Objects {
		if o.Kind == kind {
			return true
		}
	}
	return false
}

// IndentCm returns the canonical indentation of the block in centimetres.
func (b Block) IndentCm() float64 {
	return IndentCm(b.IndentLevel)
}

// CloneBlocks returns a deep copy of blocks.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b
		if b.Objects != nil {
			out[i].Objects = append([]InlineObject(nil), b.Objects...)
		}
	}
	return out
}
