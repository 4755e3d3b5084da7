package backend

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// xmlNode is a generic element tree used to rewrite slicer config files without a schema.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []*xmlNode `xml:",any"`
}

func parseXML(data []byte) (*xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	root.trim()
	return &root, nil
}

// trim drops whitespace-only text so the tree can be re-indented.
func (n *xmlNode) trim() {
	if strings.TrimSpace(n.Content) == "" {
		n.Content = ""
	}
	for _, c := range n.Children {
		c.trim()
	}
}

func (n *xmlNode) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) setAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name.Local == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (n *xmlNode) children(name string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *xmlNode) first(name string) *xmlNode {
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// removeWhere drops every child for which drop returns true.
func (n *xmlNode) removeWhere(drop func(*xmlNode) bool) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if !drop(c) {
			kept = append(kept, c)
		}
	}
	n.Children = kept
}

// keepFirst removes every <name> child after the first one.
func (n *xmlNode) keepFirst(name string) {
	seen := false
	n.removeWhere(func(c *xmlNode) bool {
		if c.XMLName.Local != name {
			return false
		}
		if seen {
			return true
		}
		seen = true
		return false
	})
}

// meta returns the value of <metadata key="key" value="..."/>.
func (n *xmlNode) meta(key string) (string, bool) {
	for _, m := range n.children("metadata") {
		if m.attr("key") == key {
			return m.attr("value"), true
		}
	}
	return "", false
}

// setMeta updates the metadata entry for key, appending one when absent.
func (n *xmlNode) setMeta(key, value string) {
	for _, m := range n.children("metadata") {
		if m.attr("key") == key {
			m.setAttr("value", value)
			return
		}
	}
	m := &xmlNode{XMLName: xml.Name{Local: "metadata"}}
	m.setAttr("key", key)
	m.setAttr("value", value)
	n.Children = append(n.Children, m)
}
