package scan

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"ioclens/internal/dom"
)

// Wrapper markup. The wrapper tag is a span so it never changes block layout;
// everything the presentation layer needs rides on data attributes.
const (
	WrapperTag       = "span"
	AttrAnnotationID = "data-ioclens-id"
	AttrEntityType   = "data-entity-type"
	AttrEntityValue  = "data-entity-value"
	AttrFound        = "data-found"
	AttrSourceState  = "data-source-state"
	AttrSelected     = "data-selected"
	AttrStyleMarker  = "data-ioclens-style"
)

// wrapperCSS renders wrappers inside shadow roots, whose style scope never
// sees the page stylesheet.
const wrapperCSS = `span[data-ioclens-id]{background:rgba(255,193,7,.35);border-bottom:1px dashed #b8860b;cursor:pointer}
span[data-ioclens-id][data-selected="true"]{background:rgba(255,152,0,.55)}`

// AttrFunc produces the wrapper attributes for one entity record.
type AttrFunc func(rec *EntityRecord) []html.Attribute

// DefaultAttrs is the standard wrapper attribute factory.
func DefaultAttrs(rec *EntityRecord) []html.Attribute {
	found := "false"
	if rec.Found {
		found = "true"
	}
	return []html.Attribute{
		{Key: AttrEntityType, Val: rec.Type},
		{Key: AttrEntityValue, Val: rec.Value},
		{Key: AttrFound, Val: found},
		{Key: AttrSourceState, Val: string(rec.SourceState)},
		{Key: AttrSelected, Val: "false"},
	}
}

// IsAnnotationWrapper reports whether n is a wrapper created by the applier.
func IsAnnotationWrapper(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == WrapperTag &&
		dom.Attr(n, AttrAnnotationID) != ""
}

// Applier mutates the live tree to wrap matched ranges. It is not reentrant;
// the owning Session serializes passes.
type Applier struct {
	log *zap.Logger
}

// NewApplier creates an applier. A nil logger is replaced with a no-op.
func NewApplier(log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{log: log}
}

// Apply wraps every still-valid candidate and returns the created handles in
// document order.
//
// Candidates are processed highest corpus offset first. Wrapping splits a
// leaf into up to three fragments, and only the prefix before the match keeps
// its coordinates; so a pending candidate in the same leaf survives exactly
// when every candidate above it has already been applied. Reverse order is
// the one order for which that holds for every candidate.
//
// Each candidate is re-validated against the live tree immediately before
// mutation; validation failures and structural panics skip the candidate and
// never abort the pass.
func (a *Applier) Apply(doc *dom.Document, candidates []MatchCandidate, attrs AttrFunc) []*Annotation {
	if attrs == nil {
		attrs = DefaultAttrs
	}

	ordered := make([]MatchCandidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].GlobalOffset > ordered[j].GlobalOffset
	})

	injected := make(map[*html.Node]bool)
	var anns []*Annotation
	for _, cand := range ordered {
		ann := a.applyOne(doc, cand, attrs, injected)
		if ann != nil {
			anns = append(anns, ann)
		}
	}

	// Handles go back to the caller in document order.
	sort.Slice(anns, func(i, j int) bool { return anns[i].Offset[0] < anns[j].Offset[0] })
	return anns
}

// applyOne validates and wraps a single candidate. A best-effort pass must
// never die on one bad candidate, so structural panics are absorbed here.
func (a *Applier) applyOne(doc *dom.Document, cand MatchCandidate, attrs AttrFunc, injected map[*html.Node]bool) (ann *Annotation) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("wrapping panicked, candidate skipped",
				zap.Int("offset", cand.GlobalOffset), zap.Any("panic", r))
			ann = nil
		}
	}()

	if err := validateCandidate(cand); err != nil {
		a.log.Debug("candidate invalid, skipped",
			zap.Int("offset", cand.GlobalOffset), zap.Error(err))
		return nil
	}

	id := uuid.NewString()
	attrList := append([]html.Attribute{{Key: AttrAnnotationID, Val: id}}, attrs(cand.Entity)...)
	wrapper := dom.WrapRange(cand.Leaf, cand.LocalStart, cand.LocalEnd, WrapperTag, attrList)
	if wrapper == nil {
		return nil
	}

	if root := enclosingShadowRoot(doc, wrapper); root != nil && !injected[root] {
		injectStyle(root)
		injected[root] = true
	}

	return &Annotation{
		ID:      id,
		Record:  cand.Entity,
		Wrapper: wrapper,
		Offset:  [2]int{cand.GlobalOffset, cand.GlobalOffset + (cand.LocalEnd - cand.LocalStart)},
	}
}

// validateCandidate re-checks a candidate against the current tree state,
// not the state at discovery time.
func validateCandidate(cand MatchCandidate) error {
	leaf := cand.Leaf
	if leaf == nil || leaf.Type != html.TextNode || !dom.Attached(leaf) {
		return ErrStructuralMismatch
	}
	if cand.LocalStart < 0 || cand.LocalEnd > len(leaf.Data) || cand.LocalStart >= cand.LocalEnd {
		return ErrStructuralMismatch
	}
	if dom.AncestorMatch(leaf, IsAnnotationWrapper) != nil {
		return ErrStructuralMismatch
	}
	return nil
}

// enclosingShadowRoot finds the shadow root containing n, if any. Roots are
// either registry-attached fragment roots or declarative template elements.
func enclosingShadowRoot(doc *dom.Document, n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "template" && dom.Attr(p, dom.AttrShadowMode) != "" {
			return p
		}
		if p.Parent == nil && p.Type == html.ElementNode {
			// Fragment root: a registry-attached shadow tree.
			if doc != nil && p != doc.Root {
				return p
			}
		}
	}
	return nil
}

// injectStyle adds the wrapper stylesheet to a shadow root exactly once.
// The marker attribute makes repeat injection a no-op even across appliers.
func injectStyle(root *html.Node) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "style" && dom.Attr(c, AttrStyleMarker) != "" {
			return
		}
	}
	style := &html.Node{
		Type: html.ElementNode,
		Data: "style",
		Attr: []html.Attribute{{Key: AttrStyleMarker, Val: "1"}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: wrapperCSS})
	if first := root.FirstChild; first != nil {
		root.InsertBefore(style, first)
	} else {
		root.AppendChild(style)
	}
}

// Clear removes every wrapper under the document (shadow regions included)
// and merges the text fragments wrapping left behind, restoring the tree for
// the next scan.
func (a *Applier) Clear(doc *dom.Document) int {
	if doc == nil || doc.Root == nil {
		return 0
	}
	removed := 0
	roots := []*html.Node{doc.Root}
	visited := map[*html.Node]bool{doc.Root: true}

	for len(roots) > 0 {
		root := roots[len(roots)-1]
		roots = roots[:len(roots)-1]

		var wrappers []*html.Node
		var parents []*html.Node
		var walk func(n *html.Node)
		walk = func(n *html.Node) {
			if IsAnnotationWrapper(n) {
				wrappers = append(wrappers, n)
				parents = append(parents, n.Parent)
			}
			if n.Type == html.ElementNode {
				if n != root && n.Data == "template" && dom.Attr(n, dom.AttrShadowMode) != "" {
					// Declarative roots are visited through their host's
					// attachment point, not the generic descent.
					return
				}
				if shadow, ok := doc.ShadowRoot(n); ok && !visited[shadow] {
					visited[shadow] = true
					roots = append(roots, shadow)
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)

		for i, w := range wrappers {
			dom.Unwrap(w)
			dom.MergeTextSiblings(parents[i])
			removed++
		}
	}

	if removed > 0 {
		a.log.Debug("cleared annotations", zap.Int("removed", removed))
	}
	return removed
}
