package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// WrapRange splits the text node leaf around [start, end) and moves the
// matched fragment into a new wrapper element. It returns the wrapper, which
// holds exactly one text child containing leaf.Data[start:end].
//
// The prefix [0, start) stays in the original leaf, so any pending range at a
// lower offset in the same leaf keeps its coordinates. The suffix becomes a
// fresh text sibling after the wrapper.
func WrapRange(leaf *html.Node, start, end int, tag string, attrs []html.Attribute) *html.Node {
	parent := leaf.Parent
	if parent == nil || leaf.Type != html.TextNode {
		return nil
	}
	if start < 0 || end > len(leaf.Data) || start >= end {
		return nil
	}

	text := leaf.Data
	wrapper := &html.Node{Type: html.ElementNode, Data: tag, Attr: attrs}
	wrapper.AppendChild(&html.Node{Type: html.TextNode, Data: text[start:end]})

	next := leaf.NextSibling
	if end < len(text) {
		after := &html.Node{Type: html.TextNode, Data: text[end:]}
		parent.InsertBefore(after, next)
		next = after
	}
	parent.InsertBefore(wrapper, next)

	if start > 0 {
		leaf.Data = text[:start]
	} else {
		parent.RemoveChild(leaf)
	}
	return wrapper
}

// Unwrap replaces n with its children in place.
func Unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

// MergeTextSiblings coalesces runs of adjacent text children of parent into
// single nodes, restoring the shape the tree had before wrappers split it.
func MergeTextSiblings(parent *html.Node) {
	if parent == nil {
		return
	}
	for c := parent.FirstChild; c != nil; {
		if c.Type == html.TextNode && c.NextSibling != nil && c.NextSibling.Type == html.TextNode {
			var sb strings.Builder
			sb.WriteString(c.Data)
			for c.NextSibling != nil && c.NextSibling.Type == html.TextNode {
				sb.WriteString(c.NextSibling.Data)
				parent.RemoveChild(c.NextSibling)
			}
			c.Data = sb.String()
		}
		c = c.NextSibling
	}
}

// Attached reports whether n still has a path to a root (a node with no
// parent that is a document or element). Detached leaves fail validation in
// the applier.
func Attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
		if p.Parent == nil {
			// Fragment roots (tests, shadow trees) count as attached.
			return p.Type == html.ElementNode
		}
	}
	return false
}

// AncestorMatch walks up from n and returns the first ancestor for which
// pred returns true.
func AncestorMatch(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if pred(p) {
			return p
		}
	}
	return nil
}
