package scan

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"ioclens/internal/dom"
)

// corpusSeparator keeps adjacent leaves from fusing into accidental matches.
const corpusSeparator = " "

// Normalizer flattens the visible part of a document into a Corpus.
// Re-running it on an unmodified tree yields byte-identical output.
type Normalizer struct {
	log *zap.Logger
}

// NewNormalizer creates a normalizer. A nil logger is replaced with a no-op.
func NewNormalizer(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// walkItem is one pending node on the explicit traversal stack.
type walkItem struct {
	node *html.Node
}

// Normalize walks the document depth-first in document order, inlining
// shadow sub-regions at their host's position. Traversal is an explicit
// worklist with a visited set for shadow roots, so nested and cyclic
// attachments are duplicate-safe regardless of depth.
func (n *Normalizer) Normalize(doc *dom.Document) *Corpus {
	c := &Corpus{}
	if doc == nil || doc.Root == nil {
		return c
	}

	var sb strings.Builder
	visitedRoots := make(map[*html.Node]bool)

	stack := []walkItem{{node: doc.Root}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := item.node

		switch node.Type {
		case html.TextNode:
			n.appendLeaf(c, &sb, node)
			continue
		case html.ElementNode:
			if !dom.Visible(node) {
				continue
			}
		case html.DocumentNode:
			// Descend.
		default:
			continue
		}

		// Children in document order: push in reverse so the stack pops
		// them first-to-last. A shadow root takes the place of the host's
		// light children, inlined at the host's position.
		if node.Type == html.ElementNode {
			if root, ok := doc.ShadowRoot(node); ok {
				if visitedRoots[root] {
					continue
				}
				visitedRoots[root] = true
				pushChildren(&stack, root)
				continue
			}
		}
		pushChildren(&stack, node)
	}

	c.Text = sb.String()
	n.log.Debug("normalized document",
		zap.Int("corpus_bytes", len(c.Text)),
		zap.Int("leaves", len(c.Spans)),
		zap.Int("shadow_roots", len(visitedRoots)))
	return c
}

func pushChildren(stack *[]walkItem, parent *html.Node) {
	var kids []*html.Node
	for ch := parent.FirstChild; ch != nil; ch = ch.NextSibling {
		kids = append(kids, ch)
	}
	for i := len(kids) - 1; i >= 0; i-- {
		*stack = append(*stack, walkItem{node: kids[i]})
	}
}

// appendLeaf records one text leaf's trimmed content with its offset span.
func (n *Normalizer) appendLeaf(c *Corpus, sb *strings.Builder, leaf *html.Node) {
	trimmed := strings.TrimSpace(leaf.Data)
	if trimmed == "" {
		return
	}
	leading := strings.Index(leaf.Data, trimmed)
	start := sb.Len()
	sb.WriteString(trimmed)
	c.Spans = append(c.Spans, NodeSpan{
		Leaf:        leaf,
		Start:       start,
		End:         start + len(trimmed),
		LeadingTrim: leading,
	})
	sb.WriteString(corpusSeparator)
}
