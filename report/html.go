package report

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lerlerchan/ExamOps-Orchestrator/diff"
	"github.com/lerlerchan/ExamOps-Orchestrator/model"
)

const reportCSS = `
body { font-family: Consolas, monospace; font-size: 13px; }
table { border-collapse: collapse; }
table.diff { width: 100%; margin-bottom: 1em; }
td, th { padding: 2px 6px; vertical-align: top; }
th.hunk { background-color: #f0f0f0; text-align: left; }
td.line { color: #888; text-align: right; }
tr.addition td.text { background-color: #c6efce; color: #276221; }
tr.deletion td.text { background-color: #ffc7ce; color: #9c0006; }
tr.modification td.text { background-color: #ffeb9c; color: #9c6500; }
del { color: #9c0006; }
`

// element creates an element node. attrs are key/value pairs.
func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// appendText appends an element holding only text.
func appendText(parent *html.Node, a atom.Atom, s string, attrs ...string) *html.Node {
	n := element(a, attrs...)
	n.AppendChild(textNode(s))
	parent.AppendChild(n)
	return n
}

func lineNumber(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// buildHTML builds the report page as a node tree.
func buildHTML(r *Report) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, "lang", "en")
	doc.AppendChild(root)

	head := element(atom.Head)
	root.AppendChild(head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	appendText(head, atom.Title, "ExamOps Diff Report")
	appendText(head, atom.Style, reportCSS)

	body := element(atom.Body)
	root.AppendChild(body)
	appendText(body, atom.H1, "ExamOps Diff Report")
	appendText(body, atom.P, r.Summary, "class", "summary", "data-status", string(r.Status))
	appendText(body, atom.P, fmt.Sprintf("Report %s, %s", r.ID, r.Timestamp.Format("2006-01-02 15:04:05 MST")), "class", "meta")

	body.AppendChild(countsTable(r))

	if r.Compliance != nil && len(r.Compliance.Issues) > 0 {
		appendText(body, atom.H2, "Issues")
		ul := element(atom.Ul, "class", "issues")
		for _, issue := range r.Compliance.Issues {
			appendText(ul, atom.Li, issue)
		}
		body.AppendChild(ul)
	}

	appendText(body, atom.H2, "Changes")
	if len(r.Hunks) == 0 {
		appendText(body, atom.P, "No differences.", "class", "empty")
	}
	for _, h := range r.Hunks {
		body.AppendChild(hunkTable(h))
	}
	return doc
}

func countsTable(r *Report) *html.Node {
	table := element(atom.Table, "class", "counts")
	head := element(atom.Tr)
	appendText(head, atom.Th, "Category")
	appendText(head, atom.Th, "Changes")
	table.AppendChild(head)
	for _, c := range model.Categories {
		tr := element(atom.Tr, "data-category", string(c))
		appendText(tr, atom.Td, string(c))
		appendText(tr, atom.Td, strconv.Itoa(r.ChangeCounts[c]))
		table.AppendChild(tr)
	}
	tr := element(atom.Tr, "class", "total")
	appendText(tr, atom.Td, "total")
	appendText(tr, atom.Td, strconv.Itoa(r.TotalChanges))
	table.AppendChild(tr)
	return table
}

func hunkTable(h diff.Hunk) *html.Node {
	table := element(atom.Table, "class", "diff")
	header := element(atom.Tr)
	appendText(header, atom.Th, h.Header(), "class", "hunk", "colspan", "3")
	table.AppendChild(header)

	for _, e := range h.Entries {
		tr := element(atom.Tr, "class", ColorClass(e.Kind))
		appendText(tr, atom.Td, lineNumber(e.LineBefore), "class", "line")
		appendText(tr, atom.Td, lineNumber(e.LineAfter), "class", "line")
		td := element(atom.Td, "class", "text")
		if e.Kind == diff.Replace {
			appendText(td, atom.Del, e.OldText)
			td.AppendChild(element(atom.Br))
		}
		td.AppendChild(textNode(e.Text))
		tr.AppendChild(td)
		table.AppendChild(tr)
	}
	return table
}

func writeHTML(r *Report, w io.Writer) error {
	if err := html.Render(w, buildHTML(r)); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}
	return nil
}
