package docx

import "encoding/xml"

// XML namespaces used in DOCX files
const (
	nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsM = "http://schemas.openxmlformats.org/officeDocument/2006/math"
	// nsMC is the markup compatibility namespace (mc:AlternateContent).
	nsMC = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	nsR  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	nsPkgRels     = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentType = "http://schemas.openxmlformats.org/package/2006/content-types"
)

// Relationship types
const (
	relHeader = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	relFooter = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"
)

// Content types of header and footer parts.
const (
	ctHeader = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
	ctFooter = "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"
)

// chartURI marks a drawing whose graphic is a chart.
const chartURI = "http://schemas.openxmlformats.org/drawingml/2006/chart"

// twipsPerCm converts page measurements. A twip is 1/1440 inch.
const twipsPerCm = 1440.0 / 2.54

// paragraphPropsXML represents paragraph properties (<w:pPr>).
type paragraphPropsXML struct {
	Style         styleRefXML      `xml:"pStyle"`
	Justification justificationXML `xml:"jc"`
	Indent        indentXML        `xml:"ind"`
	Section       *sectPrXML       `xml:"sectPr"`
}

// styleRefXML represents a style reference.
type styleRefXML struct {
	Val string `xml:"val,attr"`
}

// justificationXML represents text justification.
type justificationXML struct {
	Val string `xml:"val,attr"` // left, center, right, both
}

// indentXML represents paragraph indentation in twips. Newer writers use
// start instead of left.
type indentXML struct {
	Left    string `xml:"left,attr"`
	Start   string `xml:"start,attr"`
	Hanging string `xml:"hanging,attr"`
}

// runXML represents a text run (<w:r>) in header and footer parts.
type runXML struct {
	Properties runPropsXML `xml:"rPr"`
	Text       []textXML   `xml:"t"`
	Tabs       []tabXML    `xml:"tab"`
}

// runPropsXML represents run properties (<w:rPr>).
type runPropsXML struct {
	Bold     boolXML `xml:"b"`
	FontSize sizeXML `xml:"sz"`
}

// boolXML represents an on/off property. An absent element is off; a
// present one is on unless its val says otherwise.
type boolXML struct {
	XMLName xml.Name
	Val     string `xml:"val,attr"`
}

func (b boolXML) on() bool {
	if b.XMLName.Local == "" {
		return false
	}
	switch b.Val {
	case "false", "0", "off":
		return false
	}
	return true
}

// sizeXML represents font size (in half-points).
type sizeXML struct {
	Val string `xml:"val,attr"`
}

// textXML represents text content (<w:t>).
type textXML struct {
	Value string `xml:",chardata"`
}

// tabXML represents a tab character.
type tabXML struct {
	XMLName xml.Name `xml:"tab"`
}

// headerParagraphXML is a paragraph of a header or footer part.
type headerParagraphXML struct {
	Properties paragraphPropsXML `xml:"pPr"`
	Runs       []runXML          `xml:"r"`
}

// hdrFtrXML represents word/header*.xml (<w:hdr>) and word/footer*.xml
// (<w:ftr>). Tables in headers are flattened into their paragraphs.
type hdrFtrXML struct {
	Paragraphs []headerParagraphXML `xml:"p"`
	Tables     []headerParagraphXML `xml:"tbl>tr>tc>p"`
}

// drawingXML represents an embedded drawing (<w:drawing>).
type drawingXML struct {
	Inline *graphicFrameXML `xml:"inline"`
	Anchor *graphicFrameXML `xml:"anchor"`
}

// frame returns whichever of inline or anchor is present.
func (d drawingXML) frame() *graphicFrameXML {
	if d.Inline != nil {
		return d.Inline
	}
	return d.Anchor
}

// graphicFrameXML is the shared shape of wp:inline and wp:anchor.
type graphicFrameXML struct {
	DocPr   docPrXML       `xml:"docPr"`
	Graphic graphicDataXML `xml:"graphic>graphicData"`
}

// graphicDataXML holds the graphic payload; URI names its kind.
type graphicDataXML struct {
	URI  string   `xml:"uri,attr"`
	Blip *blipXML `xml:"pic>blipFill>blip"`
}

// docPrXML represents document properties of a drawing.
type docPrXML struct {
	Name  string `xml:"name,attr"`
	Descr string `xml:"descr,attr"` // Alt text
}

// blipXML represents an image reference.
type blipXML struct {
	Embed string `xml:"embed,attr"` // Relationship ID
}

// objectXML represents an embedded OLE object (<w:object>).
type objectXML struct {
	OLE struct {
		ProgID string `xml:"ProgID,attr"`
	} `xml:"OLEObject"`
}

// sectPrXML represents section properties (<w:sectPr>).
type sectPrXML struct {
	HeaderRefs []partRefXML `xml:"headerReference"`
	FooterRefs []partRefXML `xml:"footerReference"`
	PgMar      *pgMarXML    `xml:"pgMar"`
}

// partRefXML references a header or footer part by relationship ID.
type partRefXML struct {
	Type string `xml:"type,attr"` // default, first, even
	ID   string `xml:"id,attr"`
}

// pgMarXML represents page margins in twips.
type pgMarXML struct {
	Top    string `xml:"top,attr"`
	Bottom string `xml:"bottom,attr"`
	Left   string `xml:"left,attr"`
	Right  string `xml:"right,attr"`
}

// relationshipsXML represents word/_rels/document.xml.rels.
type relationshipsXML struct {
	XMLName       xml.Name          `xml:"Relationships"`
	Relationships []relationshipXML `xml:"Relationship"`
}

// relationshipXML represents a single relationship.
type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"` // External or empty (internal)
}

// corePropertiesXML represents docProps/core.xml (Dublin Core metadata)
type corePropertiesXML struct {
	XMLName        xml.Name `xml:"coreProperties"`
	Title          string   `xml:"title"`
	Subject        string   `xml:"subject"`
	Creator        string   `xml:"creator"`
	Keywords       string   `xml:"keywords"`
	LastModifiedBy string   `xml:"lastModifiedBy"`
	Revision       string   `xml:"revision"`
	Modified       string   `xml:"modified"`
}

// appPropertiesXML represents docProps/app.xml
type appPropertiesXML struct {
	XMLName     xml.Name `xml:"Properties"`
	Template    string   `xml:"Template"`
	Application string   `xml:"Application"`
}
