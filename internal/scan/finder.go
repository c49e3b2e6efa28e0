package scan

import (
	"strings"

	"golang.org/x/net/html"

	"ioclens/internal/dom"
)

// minValueLength rejects degenerate values before any searching happens.
// Single characters match everywhere and mean nothing.
const minValueLength = 2

// MatchOptions control one finder pass.
type MatchOptions struct {
	CaseSensitive       bool
	RequireWordBoundary bool
}

// boundaryRunes are accepted word boundaries: sentence punctuation plus
// anything unicode considers whitespace (checked separately).
//
// Deliberately absent: '.' '-' '_' '[' ']'. Those occur inside domain names,
// dashed identifiers, and defanged indicators (dl[.]example.org); treating
// them as boundaries both misses defanged matches and accepts sub-word hits
// inside longer identifiers.
const boundaryRunes = `,;:!?"'()<>{}/|`

func isBoundary(b byte) bool {
	if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
		return true
	}
	return strings.IndexByte(boundaryRunes, b) >= 0
}

// lowerASCII folds A-Z without touching multi-byte runes, so offsets into the
// folded text stay valid in the original. Indicator values are ASCII; full
// Unicode case folding can change byte lengths and desync the NodeMap.
func lowerASCII(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if b == nil {
				b = []byte(s)
			}
			b[i] = c + ('a' - 'A')
		}
	}
	if b == nil {
		return s
	}
	return string(b)
}

// FindMatches locates every occurrence of value in the corpus, in document
// order. Each hit must fit inside a single leaf span; hits whose leaf already
// sits under an annotation wrapper are skipped without aborting the scan.
func FindMatches(c *Corpus, value string, entity *EntityRecord, opts MatchOptions) []MatchCandidate {
	if c == nil || len(value) < minValueLength {
		return nil
	}

	haystack := c.Text
	needle := value
	if !opts.CaseSensitive {
		haystack = lowerASCII(haystack)
		needle = lowerASCII(needle)
	}

	var out []MatchCandidate
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			break
		}
		hit := from + idx
		from = hit + len(needle) // advance past this hit

		if opts.RequireWordBoundary {
			if hit > 0 && !isBoundary(haystack[hit-1]) {
				continue
			}
			if end := hit + len(needle); end < len(haystack) && !isBoundary(haystack[end]) {
				continue
			}
		}

		span, ok := c.SpanAt(hit)
		if !ok || hit+len(needle) > span.End {
			// Crosses a leaf boundary (or lands on a separator); a
			// candidate must live inside one leaf.
			continue
		}
		if leafAnnotated(span.Leaf) {
			continue
		}

		local := hit - span.Start + span.LeadingTrim
		out = append(out, MatchCandidate{
			GlobalOffset: hit,
			Leaf:         span.Leaf,
			LocalStart:   local,
			LocalEnd:     local + len(needle),
			Entity:       entity,
		})
	}
	return out
}

// leafAnnotated reports whether the leaf already lives inside a wrapper from
// a prior pass.
func leafAnnotated(leaf *html.Node) bool {
	return dom.AncestorMatch(leaf, IsAnnotationWrapper) != nil
}
