package model

import "fmt"

// Document represents an exam paper as an ordered list of blocks plus
// the page setup of its (first) section.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Section  Section  `json:"section"`
	Blocks   []Block  `json:"blocks"`
}

// Metadata contains document-level information
type Metadata struct {
	Title   string `json:"title,omitempty"`
	Author  string `json:"author,omitempty"`
	Subject string `json:"subject,omitempty"`
	// Source is the name of the file or stream the document was decoded from.
	Source string `json:"source,omitempty"`
	// Custom metadata
	Custom map[string]string `json:"custom,omitempty"`
}

// Margins holds page margins in centimetres.
type Margins struct {
	Top    float64 `json:"top" yaml:"top" validate:"gte=0,lte=10"`
	Bottom float64 `json:"bottom" yaml:"bottom" validate:"gte=0,lte=10"`
	Left   float64 `json:"left" yaml:"left" validate:"gte=0,lte=10"`
	Right  float64 `json:"right" yaml:"right" validate:"gte=0,lte=10"`
}

// Equal reports whether both margin sets are the same to within 0.005 cm.
func (m Margins) Equal(o Margins) bool {
	return closeTo(m.Top, o.Top) && closeTo(m.Bottom, o.Bottom) &&
		closeTo(m.Left, o.Left) && closeTo(m.Right, o.Right)
}

func (m Margins) String() string {
	return fmt.Sprintf("top %.2f cm, bottom %.2f cm, left %.2f cm, right %.2f cm", m.Top, m.Bottom, m.Left, m.Right)
}

// TextStyle describes the presentation of a header or footer line.
type TextStyle struct {
	Bold bool `json:"bold" yaml:"bold"`
	// Alignment is one of left, center, right, both.
	Alignment string  `json:"alignment" yaml:"alignment" validate:"omitempty,oneof=left center right both"`
	SizePt    float64 `json:"size_pt" yaml:"size_pt" validate:"gte=0,lte=72"`
}

func (s TextStyle) String() string {
	return fmt.Sprintf("bold=%t align=%s size=%gpt", s.Bold, s.Alignment, s.SizePt)
}

// Section holds the page setup of a document: margins and header/footer.
type Section struct {
	Margins     Margins   `json:"margins"`
	HeaderText  string    `json:"header_text"`
	FooterText  string    `json:"footer_text"`
	HeaderStyle TextStyle `json:"header_style"`
	FooterStyle TextStyle `json:"footer_style"`
}

// NewDocument creates a new empty document
func NewDocument() *Document {
	return &Document{
		Metadata: Metadata{
			Custom: make(map[string]string),
		},
		Blocks: make([]Block, 0),
	}
}

// AddBlock appends a block to the document
func (d *Document) AddBlock(b Block) {
	d.Blocks = append(d.Blocks, b)
}

// BlockCount returns the number of blocks
func (d *Document) BlockCount() int {
	return len(d.Blocks)
}

// Lines returns the text of every block, one entry per block. Blank blocks
// are kept as empty strings so that visual separation survives.
func (d *Document) Lines() []string {
	lines := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		lines[i] = b.Text
	}
	return lines
}

// ExtractText returns all block text joined with newlines
func (d *Document) ExtractText() string {
	var out []byte
	for i, b := range d.Blocks {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, b.Text...)
	}
	return string(out)
}

// ProtectedCount returns the number of protected blocks
func (d *Document) ProtectedCount() int {
	n := 0
	for _, b := range d.Blocks {
		if b.Protected {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the document. Normalizers work on clones so
// that the caller's document is never mutated.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		Metadata: d.Metadata,
		Section:  d.Section,
		Blocks:   CloneBlocks(d.Blocks),
	}
	if d.Metadata.Custom != nil {
		c.Metadata.Custom = make(map[string]string, len(d.Metadata.Custom))
		for k, v := range d.Metadata.Custom {
			c.Metadata.Custom[k] = v
		}
	}
	return c
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 0.005
}
