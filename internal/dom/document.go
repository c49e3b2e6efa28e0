// Package dom wraps a golang.org/x/net/html node tree with the pieces the
// scanner needs on top of plain HTML: shadow-root attachment points for
// style-isolated sub-regions, visibility evaluation, and the structural
// mutation helpers used by the annotation applier.
package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// AttrHidden marks elements the snapshotter determined to be invisible at
// capture time (zero-size rect or computed display/visibility/opacity).
// Static documents never carry it; live snapshots fold computed style into it.
const AttrHidden = "data-ioclens-hidden"

// AttrShadowMode is the attribute a declarative shadow-root template carries.
const AttrShadowMode = "shadowrootmode"

// excludedTags never contribute text to the corpus and are never descended into.
var excludedTags = map[string]bool{
	"script": true, "style": true, "template": true, "noscript": true,
	"video": true, "audio": true, "head": true, "meta": true, "link": true,
	"img": true, "br": true, "hr": true, "iframe": true, "object": true,
	"svg": true,
}

// Document is a parsed HTML tree plus the shadow-root registry.
// Shadow roots are reachable only through ShadowRoot, never through the
// generic child traversal: declarative roots live inside template elements
// (which the walk excludes), and programmatic roots live only in the registry.
type Document struct {
	Root    *html.Node
	shadows map[*html.Node]*html.Node // host element -> shadow root
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, shadows: make(map[*html.Node]*html.Node)}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// New wraps an existing node tree. A nil root is allowed; the scanner treats
// it as an empty document.
func New(root *html.Node) *Document {
	return &Document{Root: root, shadows: make(map[*html.Node]*html.Node)}
}

// AttachShadow registers root as the shadow root of host. Used by tests and
// by snapshot importers that materialize shadow trees out of band.
func (d *Document) AttachShadow(host, root *html.Node) {
	if host == nil || root == nil {
		return
	}
	if d.shadows == nil {
		d.shadows = make(map[*html.Node]*html.Node)
	}
	d.shadows[host] = root
}

// ShadowRoot returns the shadow root attached to host, if any. Registry
// entries win; otherwise a declarative template[shadowrootmode] child counts
// as the attachment point.
func (d *Document) ShadowRoot(host *html.Node) (*html.Node, bool) {
	if host == nil || host.Type != html.ElementNode {
		return nil, false
	}
	if d.shadows != nil {
		if root, ok := d.shadows[host]; ok {
			return root, true
		}
	}
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "template" && Attr(c, AttrShadowMode) != "" {
			return c, true
		}
	}
	return nil, false
}

// Render serializes the document back to HTML.
func (d *Document) Render(w io.Writer) error {
	if d == nil || d.Root == nil {
		return nil
	}
	return html.Render(w, d.Root)
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present at all. Boolean
// attributes like hidden parse with an empty value, so presence is the test.
func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces the named attribute on n.
func SetAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

// Excluded reports whether the element tag is in the excluded set.
func Excluded(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && excludedTags[n.Data]
}

// Visible reports whether a single element renders its text. The caller is
// responsible for checking every ancestor; the normalizer does that by
// pruning its walk at the first invisible element.
func Visible(n *html.Node) bool {
	if n == nil {
		return false
	}
	if n.Type != html.ElementNode {
		return true
	}
	if Excluded(n) {
		return false
	}
	if HasAttr(n, "hidden") || Attr(n, AttrHidden) != "" {
		return false
	}
	if strings.EqualFold(Attr(n, "aria-hidden"), "true") {
		return false
	}
	return !styleHides(Attr(n, "style"))
}

// styleHides inspects an inline style declaration for the hiding properties.
func styleHides(style string) bool {
	if style == "" {
		return false
	}
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(val))
		switch prop {
		case "display":
			if val == "none" {
				return true
			}
		case "visibility":
			if val == "hidden" || val == "collapse" {
				return true
			}
		case "opacity":
			if val == "0" || val == "0.0" || val == "0%" {
				return true
			}
		}
	}
	return false
}
