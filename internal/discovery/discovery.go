// Package discovery asks an AI model to propose indicator candidates the
// pattern table cannot see (prose-described infrastructure, obfuscated
// values). Candidates re-enter the normal match/apply pipeline; ones that
// never match the corpus are reported back flagged non-highlightable rather
// than dropped.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ioclens/internal/scan"
)

// Discoverer produces candidate indicators from a corpus excerpt.
type Discoverer interface {
	Discover(ctx context.Context, corpusExcerpt string) ([]scan.AICandidate, error)
}

// maxExcerptBytes bounds what a prompt carries; pages larger than this get
// their head, which is where article bodies live.
const maxExcerptBytes = 24 * 1024

// Truncate clips a corpus for prompting.
func Truncate(corpus string) string {
	if len(corpus) <= maxExcerptBytes {
		return corpus
	}
	return corpus[:maxExcerptBytes]
}

// rawCandidate mirrors the JSON shape the model is asked for.
type rawCandidate struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// ParseCandidates recovers a candidate array from a model response that may
// be wrapped in markdown fences or prose. Malformed candidates (missing
// value or type) are discarded before they reach the pipeline.
func ParseCandidates(response string) ([]scan.AICandidate, error) {
	jsonStr := extractJSONArray(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var raw []rawCandidate
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("JSON parse failed: %w", err)
	}

	out := make([]scan.AICandidate, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Value) == "" || strings.TrimSpace(r.Type) == "" {
			continue
		}
		out = append(out, scan.AICandidate{
			Type:       strings.ToLower(strings.TrimSpace(r.Type)),
			Value:      strings.TrimSpace(r.Value),
			Reason:     r.Reason,
			Confidence: r.Confidence,
		})
	}
	return out, nil
}

// extractJSONArray finds the first balanced JSON array in a response,
// skipping markdown wrappers.
func extractJSONArray(response string) string {
	start := strings.Index(response, "[")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
