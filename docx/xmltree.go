package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// xmlNS is the namespace the decoder reports for xml:-prefixed attributes.
const xmlNS = "http://www.w3.org/XML/1998/namespace"

// preferredPrefix names namespaces that have to be declared on written
// elements.
var preferredPrefix = map[string]string{
	nsW: "w",
	nsR: "r",
}

// node is one token of a parsed part. Elements carry their subtree; every
// other token is a leaf.
type node struct {
	tok      xml.Token
	children []*node
}

// parseTree reads a whole part into a list of top-level nodes.
func parseTree(data []byte) ([]*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{tok: t.Copy()}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, fmt.Errorf("unexpected </%s>", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		default:
			top.children = append(top.children, &node{tok: xml.CopyToken(tok)})
		}
	}
	if len(stack) != 1 {
		return nil, io.ErrUnexpectedEOF
	}
	return root.children, nil
}

// newElem creates a WordprocessingML element.
func newElem(local string, attrs ...xml.Attr) *node {
	return &node{tok: xml.StartElement{Name: xml.Name{Space: nsW, Local: local}, Attr: attrs}}
}

func wAttr(local, val string) xml.Attr {
	return xml.Attr{Name: xml.Name{Space: nsW, Local: local}, Value: val}
}

func (n *node) start() (xml.StartElement, bool) {
	se, ok := n.tok.(xml.StartElement)
	return se, ok
}

// is reports whether n is the element space:local.
func (n *node) is(space, local string) bool {
	se, ok := n.start()
	return ok && se.Name.Space == space && se.Name.Local == local
}

func (n *node) attr(local string) string {
	se, ok := n.start()
	if !ok {
		return ""
	}
	return attr(se, local)
}

// setAttr replaces the attribute space:local, adding it when missing.
func (n *node) setAttr(space, local, val string) {
	se, ok := n.start()
	if !ok {
		return
	}
	for i, a := range se.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			se.Attr[i].Value = val
			n.tok = se
			return
		}
	}
	se.Attr = append(se.Attr, xml.Attr{Name: xml.Name{Space: space, Local: local}, Value: val})
	n.tok = se
}

// child returns the first direct w:local child.
func (n *node) child(local string) *node {
	for _, c := range n.children {
		if c.is(nsW, local) {
			return c
		}
	}
	return nil
}

// elements returns the direct element children named space:local.
func (n *node) elements(space, local string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.is(space, local) {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) removeChildren(local string) {
	n.children = slices.DeleteFunc(n.children, func(c *node) bool { return c.is(nsW, local) })
}

// placeChild replaces the w: children named like c with c, keeping the
// element order given by order. Children the order does not know are
// stepped over.
func (n *node) placeChild(c *node, order []string) {
	se, _ := c.start()
	n.removeChildren(se.Name.Local)
	n.insertOrdered(c, order)
}

func (n *node) insertOrdered(c *node, order []string) {
	se, _ := c.start()
	rank := slices.Index(order, se.Name.Local)
	at := len(n.children)
	for i, x := range n.children {
		xs, ok := x.start()
		if !ok || xs.Name.Space != nsW {
			continue
		}
		if r := slices.Index(order, xs.Name.Local); r > rank {
			at = i
			break
		}
	}
	n.children = slices.Insert(n.children, at, c)
}

// find returns every descendant element space:local in document order,
// not descending into matches.
func (n *node) find(space, local string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.is(space, local) {
			out = append(out, c)
			continue
		}
		out = append(out, c.find(space, local)...)
	}
	return out
}

// text returns the character data of every w:t below n.
func (n *node) text() string {
	var buf bytes.Buffer
	for _, t := range n.find(nsW, "t") {
		for _, c := range t.children {
			if cd, ok := c.tok.(xml.CharData); ok {
				buf.Write(cd)
			}
		}
	}
	return buf.String()
}

// binding is one namespace declaration in scope.
type binding struct {
	prefix, uri string
}

// treeWriter serializes nodes. Element and attribute names get back the
// prefixes declared in the part; a namespace with no declaration in scope
// is declared on the element that needs it.
type treeWriter struct {
	buf    bytes.Buffer
	scopes [][]binding
}

func writeTree(nodes []*node) []byte {
	var w treeWriter
	for _, n := range nodes {
		w.node(n)
	}
	return w.buf.Bytes()
}

func (w *treeWriter) node(n *node) {
	switch t := n.tok.(type) {
	case xml.StartElement:
		name := w.open(t)
		for _, c := range n.children {
			w.node(c)
		}
		w.buf.WriteString("</" + name + ">")
		w.scopes = w.scopes[:len(w.scopes)-1]
	case xml.CharData:
		xml.EscapeText(&w.buf, t)
	case xml.Comment:
		w.buf.WriteString("<!--")
		w.buf.Write(t)
		w.buf.WriteString("-->")
	case xml.ProcInst:
		w.buf.WriteString("<?" + t.Target)
		if len(t.Inst) > 0 {
			w.buf.WriteByte(' ')
			w.buf.Write(t.Inst)
		}
		w.buf.WriteString("?>")
	case xml.Directive:
		w.buf.WriteString("<!")
		w.buf.Write(t)
		w.buf.WriteByte('>')
	}
}

// open writes a start tag and returns its qualified name.
func (w *treeWriter) open(se xml.StartElement) string {
	var scope []binding
	for _, a := range se.Attr {
		switch {
		case a.Name.Space == "xmlns":
			scope = append(scope, binding{a.Name.Local, a.Value})
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			scope = append(scope, binding{"", a.Value})
		}
	}
	w.scopes = append(w.scopes, scope)

	attrs := slices.Clone(se.Attr)
	name := w.qualify(se.Name, false, &attrs)
	names := make([]string, len(se.Attr))
	for i, a := range se.Attr {
		switch {
		case a.Name.Space == "xmlns":
			names[i] = "xmlns:" + a.Name.Local
		case a.Name.Space == "":
			names[i] = a.Name.Local
		default:
			names[i] = w.qualify(a.Name, true, &attrs)
		}
	}

	w.buf.WriteString("<" + name)
	for i, a := range attrs {
		if i < len(names) {
			w.buf.WriteString(" " + names[i] + `="`)
		} else {
			w.buf.WriteString(" xmlns:" + a.Name.Local + `="`)
		}
		xml.EscapeText(&w.buf, []byte(a.Value))
		w.buf.WriteByte('"')
	}
	w.buf.WriteByte('>')
	return name
}

// qualify returns the prefixed form of name. Declarations it has to add are
// appended to attrs as xmlns attributes.
func (w *treeWriter) qualify(name xml.Name, isAttr bool, attrs *[]xml.Attr) string {
	switch name.Space {
	case "":
		return name.Local
	case xmlNS:
		return "xml:" + name.Local
	}
	if p, ok := w.lookup(name.Space, isAttr); ok {
		if p == "" {
			return name.Local
		}
		return p + ":" + name.Local
	}
	// The decoder leaves undeclared prefixes untranslated.
	if !strings.ContainsAny(name.Space, ":/") {
		return name.Space + ":" + name.Local
	}

	p := w.freePrefix(name.Space)
	top := len(w.scopes) - 1
	w.scopes[top] = append(w.scopes[top], binding{p, name.Space})
	*attrs = append(*attrs, xml.Attr{Name: xml.Name{Space: "xmlns", Local: p}, Value: name.Space})
	return p + ":" + name.Local
}

// lookup finds the innermost prefix bound to uri that is not shadowed by
// an inner declaration. Attributes never use the default namespace.
func (w *treeWriter) lookup(uri string, isAttr bool) (string, bool) {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		for _, b := range w.scopes[i] {
			if b.uri != uri || (isAttr && b.prefix == "") {
				continue
			}
			if w.resolve(b.prefix) == uri {
				return b.prefix, true
			}
		}
	}
	return "", false
}

func (w *treeWriter) resolve(prefix string) string {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		for j := len(w.scopes[i]) - 1; j >= 0; j-- {
			if b := w.scopes[i][j]; b.prefix == prefix {
				return b.uri
			}
		}
	}
	return ""
}

func (w *treeWriter) freePrefix(uri string) string {
	base := preferredPrefix[uri]
	if base == "" {
		base = "ns"
	}
	p := base
	for i := 1; w.resolve(p) != ""; i++ {
		p = base + strconv.Itoa(i)
	}
	return p
}
