package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// textLeaf returns the first text node under n.
func textLeaf(n *html.Node) *html.Node {
	if n.Type == html.TextNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := textLeaf(c); found != nil {
			return found
		}
	}
	return nil
}

func renderNode(t *testing.T, n *html.Node) string {
	t.Helper()
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return sb.String()
}

func TestWrapRangeMiddle(t *testing.T) {
	doc := mustParse(t, `<p>hello world today</p>`)
	p := findElement(doc.Root, "p")
	leaf := textLeaf(p)

	wrapper := WrapRange(leaf, 6, 11, "span", []html.Attribute{{Key: "data-x", Val: "1"}})
	if wrapper == nil {
		t.Fatal("WrapRange returned nil")
	}
	got := renderNode(t, p)
	want := `<p>hello <span data-x="1">world</span> today</p>`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	// The prefix stays in the original node so lower-offset ranges remain valid.
	if leaf.Data != "hello " {
		t.Errorf("original leaf = %q, want %q", leaf.Data, "hello ")
	}
}

func TestWrapRangeAtStart(t *testing.T) {
	doc := mustParse(t, `<p>hello world</p>`)
	p := findElement(doc.Root, "p")
	leaf := textLeaf(p)

	wrapper := WrapRange(leaf, 0, 5, "span", nil)
	if wrapper == nil {
		t.Fatal("WrapRange returned nil")
	}
	got := renderNode(t, p)
	want := `<p><span>hello</span> world</p>`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if leaf.Parent != nil {
		t.Error("empty prefix leaf should have been removed from the tree")
	}
}

func TestWrapRangeAtEnd(t *testing.T) {
	doc := mustParse(t, `<p>hello world</p>`)
	p := findElement(doc.Root, "p")
	leaf := textLeaf(p)

	if WrapRange(leaf, 6, 11, "span", nil) == nil {
		t.Fatal("WrapRange returned nil")
	}
	got := renderNode(t, p)
	want := `<p>hello <span>world</span></p>`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestWrapRangeRejectsBadInput(t *testing.T) {
	doc := mustParse(t, `<p>abc</p>`)
	leaf := textLeaf(findElement(doc.Root, "p"))

	cases := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 2},
		{"end past length", 0, 4},
		{"empty range", 1, 1},
		{"inverted range", 2, 1},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if WrapRange(leaf, tt.start, tt.end, "span", nil) != nil {
				t.Errorf("WrapRange(%d, %d) should return nil", tt.start, tt.end)
			}
		})
	}

	detached := &html.Node{Type: html.TextNode, Data: "abc"}
	if WrapRange(detached, 0, 2, "span", nil) != nil {
		t.Error("WrapRange on a parentless leaf should return nil")
	}
}

func TestUnwrapAndMergeRestoresLeaf(t *testing.T) {
	doc := mustParse(t, `<p>hello world today</p>`)
	p := findElement(doc.Root, "p")
	leaf := textLeaf(p)

	wrapper := WrapRange(leaf, 6, 11, "span", nil)
	Unwrap(wrapper)
	MergeTextSiblings(p)

	if p.FirstChild == nil || p.FirstChild != p.LastChild {
		t.Fatal("expected exactly one child after unwrap+merge")
	}
	if p.FirstChild.Type != html.TextNode || p.FirstChild.Data != "hello world today" {
		t.Errorf("merged leaf = %q, want %q", p.FirstChild.Data, "hello world today")
	}
}

func TestMergeTextSiblingsKeepsElements(t *testing.T) {
	doc := mustParse(t, `<p></p>`)
	p := findElement(doc.Root, "p")
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "a"})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "b"})
	p.AppendChild(&html.Node{Type: html.ElementNode, Data: "b"})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "c"})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "d"})

	MergeTextSiblings(p)

	var kinds []string
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			kinds = append(kinds, "text:"+c.Data)
		} else {
			kinds = append(kinds, "el:"+c.Data)
		}
	}
	want := []string{"text:ab", "el:b", "text:cd"}
	if len(kinds) != len(want) {
		t.Fatalf("children = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("child %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestAttached(t *testing.T) {
	doc := mustParse(t, `<p>text</p>`)
	p := findElement(doc.Root, "p")
	leaf := textLeaf(p)

	if !Attached(leaf) {
		t.Error("leaf in a parsed document should be attached")
	}

	p.RemoveChild(leaf)
	if Attached(leaf) {
		t.Error("removed leaf should be detached")
	}

	// Fragment roots (shadow trees) count as attached.
	frag := &html.Node{Type: html.ElementNode, Data: "shadow-root"}
	child := &html.Node{Type: html.TextNode, Data: "x"}
	frag.AppendChild(child)
	if !Attached(child) {
		t.Error("leaf under a fragment root should be attached")
	}

	orphan := &html.Node{Type: html.TextNode, Data: "x"}
	if Attached(orphan) {
		t.Error("parentless text node should be detached")
	}
}

func TestAncestorMatch(t *testing.T) {
	doc := mustParse(t, `<div class="outer"><p><em>x</em></p></div>`)
	em := findElement(doc.Root, "em")

	found := AncestorMatch(em, func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "class") == "outer"
	})
	if found == nil || found.Data != "div" {
		t.Errorf("AncestorMatch = %v, want the outer div", found)
	}

	if AncestorMatch(em, func(*html.Node) bool { return false }) != nil {
		t.Error("AncestorMatch with a false predicate should return nil")
	}
}
