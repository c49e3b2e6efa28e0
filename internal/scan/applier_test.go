package scan

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"ioclens/internal/dom"
)

func renderDoc(t *testing.T, doc *dom.Document) string {
	t.Helper()
	var sb strings.Builder
	if err := doc.Render(&sb); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return sb.String()
}

func wrapperText(w *html.Node) string {
	var sb strings.Builder
	for c := w.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// Two occurrences of the same value inside one leaf. Reverse-order
// application keeps the lower-offset candidate's coordinates valid because
// the split leaves the prefix in the original node.
func TestApplyBothHitsInOneLeaf(t *testing.T) {
	doc, c := corpusOf(t, `<p>abcabc</p>`)
	rec := record("abc")
	cands := FindMatches(c, "abc", rec, MatchOptions{})
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}

	anns := NewApplier(nil).Apply(doc, cands, DefaultAttrs)
	if len(anns) != 2 {
		t.Fatalf("annotations = %d, want 2", len(anns))
	}
	for i, ann := range anns {
		if got := wrapperText(ann.Wrapper); got != "abc" {
			t.Errorf("annotation %d wraps %q, want %q", i, got, "abc")
		}
	}
	if anns[0].Offset[0] >= anns[1].Offset[0] {
		t.Error("handles must come back in document order")
	}
	out := renderDoc(t, doc)
	if got := strings.Count(out, `data-entity-value="abc"`); got != 2 {
		t.Errorf("rendered wrappers = %d, want 2\n%s", got, out)
	}
}

// Negative control: applying lowest offset first splits the leaf under the
// second candidate, whose re-validation then rejects it. Only the reverse
// order yields both annotations.
func TestApplyForwardOrderLosesCandidates(t *testing.T) {
	doc, c := corpusOf(t, `<p>abcabc</p>`)
	rec := record("abc")
	cands := FindMatches(c, "abc", rec, MatchOptions{})
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}

	a := NewApplier(nil)
	var applied int
	for _, cand := range cands { // ascending offset, deliberately wrong
		if a.applyOne(doc, cand, DefaultAttrs, map[*html.Node]bool{}) != nil {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("forward order applied %d, want 1 (validation must reject the stale candidate)", applied)
	}
}

func TestApplyNoOverlappingRanges(t *testing.T) {
	doc, c := corpusOf(t, `<p>evil.example.org and evil.example.org and 10.0.0.1</p>`)
	var cands []MatchCandidate
	cands = append(cands, FindMatches(c, "evil.example.org", record("evil.example.org"), MatchOptions{})...)
	cands = append(cands, FindMatches(c, "example.org", record("example.org"), MatchOptions{})...)
	cands = append(cands, FindMatches(c, "10.0.0.1", record("10.0.0.1"), MatchOptions{})...)

	anns := NewApplier(nil).Apply(doc, cands, DefaultAttrs)
	for i := 0; i < len(anns); i++ {
		for j := i + 1; j < len(anns); j++ {
			a, b := anns[i].Offset, anns[j].Offset
			if a[0] < b[1] && b[0] < a[1] {
				t.Errorf("annotations %d and %d overlap: %v vs %v", i, j, a, b)
			}
		}
	}
	for _, ann := range anns {
		if dom.AncestorMatch(ann.Wrapper, IsAnnotationWrapper) != nil {
			t.Error("nested annotation wrapper created")
		}
	}
}

func TestApplySkipsStaleCandidates(t *testing.T) {
	doc, c := corpusOf(t, `<p>target text</p>`)
	cands := FindMatches(c, "target", record("target"), MatchOptions{})
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}

	// Shrink the leaf after discovery; validation against the live length
	// must reject the candidate instead of panicking.
	cands[0].Leaf.Data = "tar"
	anns := NewApplier(nil).Apply(doc, cands, DefaultAttrs)
	if len(anns) != 0 {
		t.Errorf("annotations = %d, want 0", len(anns))
	}
}

func TestApplySkipsDetachedLeaf(t *testing.T) {
	doc, c := corpusOf(t, `<p>target text</p>`)
	cands := FindMatches(c, "target", record("target"), MatchOptions{})
	leaf := cands[0].Leaf
	leaf.Parent.RemoveChild(leaf)

	anns := NewApplier(nil).Apply(doc, cands, DefaultAttrs)
	if len(anns) != 0 {
		t.Errorf("annotations = %d, want 0", len(anns))
	}
}

func TestApplyOneBadCandidateDoesNotAbortPass(t *testing.T) {
	doc, c := corpusOf(t, `<p>first target</p><p>second target</p>`)
	cands := FindMatches(c, "target", record("target"), MatchOptions{})
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	cands = append(cands, MatchCandidate{GlobalOffset: 999, Leaf: nil, Entity: record("target")})

	anns := NewApplier(nil).Apply(doc, cands, DefaultAttrs)
	if len(anns) != 2 {
		t.Errorf("annotations = %d, want 2 (bad candidate skipped, pass continues)", len(anns))
	}
}

func TestApplyWrapperAttributes(t *testing.T) {
	doc, c := corpusOf(t, `<p>evil.example.org</p>`)
	rec := &EntityRecord{
		Type:  "domain",
		Value: "evil.example.org",
		SourceMatches: []SourceMatch{
			{SourceID: "alpha", Found: true},
			{SourceID: "beta", Found: true},
		},
	}
	rec.RecomputeSourceState()

	anns := NewApplier(nil).Apply(doc, FindMatches(c, rec.Value, rec, MatchOptions{}), DefaultAttrs)
	if len(anns) != 1 {
		t.Fatalf("annotations = %d, want 1", len(anns))
	}
	w := anns[0].Wrapper
	if dom.Attr(w, AttrAnnotationID) == "" {
		t.Error("wrapper missing annotation id")
	}
	if got := dom.Attr(w, AttrEntityValue); got != "evil.example.org" {
		t.Errorf("value attr = %q", got)
	}
	if got := dom.Attr(w, AttrSourceState); got != string(StateMultiFound) {
		t.Errorf("source state attr = %q, want multiFound", got)
	}
	if got := dom.Attr(w, AttrFound); got != "true" {
		t.Errorf("found attr = %q, want true", got)
	}
	if got := dom.Attr(w, AttrSelected); got != "false" {
		t.Errorf("selected attr = %q, want false", got)
	}
}

func TestApplyInjectsShadowStyleOnce(t *testing.T) {
	doc := mustDoc(t, `<div id="host"></div>`)
	host := findEl(doc.Root, "div")
	shadow := &html.Node{Type: html.ElementNode, Data: "shadow-root"}
	p := &html.Node{Type: html.ElementNode, Data: "p"}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "evil.example.org and evil.example.org"})
	shadow.AppendChild(p)
	doc.AttachShadow(host, shadow)

	c := NewNormalizer(nil).Normalize(doc)
	cands := FindMatches(c, "evil.example.org", record("evil.example.org"), MatchOptions{})
	anns := NewApplier(nil).Apply(doc, cands, DefaultAttrs)
	if len(anns) != 2 {
		t.Fatalf("annotations = %d, want 2", len(anns))
	}

	styles := 0
	for n := shadow.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "style" && dom.Attr(n, AttrStyleMarker) != "" {
			styles++
		}
	}
	if styles != 1 {
		t.Errorf("shadow style blocks = %d, want exactly 1", styles)
	}

	// A second pass over the same root must not duplicate the style.
	NewApplier(nil).Clear(doc)
	c = NewNormalizer(nil).Normalize(doc)
	cands = FindMatches(c, "evil.example.org", record("evil.example.org"), MatchOptions{})
	NewApplier(nil).Apply(doc, cands, DefaultAttrs)

	styles = 0
	for n := shadow.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "style" && dom.Attr(n, AttrStyleMarker) != "" {
			styles++
		}
	}
	if styles != 1 {
		t.Errorf("after re-scan, shadow style blocks = %d, want 1", styles)
	}
}

func TestClearRestoresTree(t *testing.T) {
	doc, c := corpusOf(t, `<p>see evil.example.org and evil.example.org today</p>`)
	a := NewApplier(nil)
	anns := a.Apply(doc, FindMatches(c, "evil.example.org", record("evil.example.org"), MatchOptions{}), DefaultAttrs)
	if len(anns) != 2 {
		t.Fatalf("annotations = %d, want 2", len(anns))
	}

	removed := a.Clear(doc)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	p := findEl(doc.Root, "p")
	if p.FirstChild == nil || p.FirstChild != p.LastChild || p.FirstChild.Type != html.TextNode {
		t.Fatal("expected a single merged text leaf after clear")
	}
	if got := p.FirstChild.Data; got != "see evil.example.org and evil.example.org today" {
		t.Errorf("restored leaf = %q", got)
	}

	// Normalizing the restored tree matches a fresh parse.
	fresh := NewNormalizer(nil).Normalize(doc)
	if fresh.Text != c.Text {
		t.Errorf("corpus after clear = %q, want %q", fresh.Text, c.Text)
	}
}

func TestClearReachesShadowRegions(t *testing.T) {
	doc := mustDoc(t, `<div id="host"></div>`)
	host := findEl(doc.Root, "div")
	shadow := &html.Node{Type: html.ElementNode, Data: "shadow-root"}
	p := &html.Node{Type: html.ElementNode, Data: "p"}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "evil.example.org"})
	shadow.AppendChild(p)
	doc.AttachShadow(host, shadow)

	c := NewNormalizer(nil).Normalize(doc)
	a := NewApplier(nil)
	anns := a.Apply(doc, FindMatches(c, "evil.example.org", record("evil.example.org"), MatchOptions{}), DefaultAttrs)
	if len(anns) != 1 {
		t.Fatalf("annotations = %d, want 1", len(anns))
	}

	if removed := a.Clear(doc); removed != 1 {
		t.Errorf("removed = %d, want 1 (wrapper inside shadow region)", removed)
	}
}
