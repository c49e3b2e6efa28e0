package scan

import "regexp"

// FilterRule is one named removal pass over a corpus copy. Rules run in table
// order; later rules assume earlier collapses already happened.
type FilterRule struct {
	ID      string
	Pattern *regexp.Regexp
	Replace string
	// Disabled rules are kept in the table for inspection but skipped.
	Disabled bool
}

// boilerplateRules strips the noise a rendered page leaks into its text:
// asset links, pseudo-protocol references, selector fragments, and transient
// microcopy. None of this is indicator material, but it pattern-matches
// indicator shapes (domains, URLs) and pollutes classification heuristics.
var boilerplateRules = []FilterRule{
	{
		ID: "infra-domains",
		Pattern: regexp.MustCompile(`(?i)\bhttps?://[a-z0-9.-]*(?:googleapis\.com|gstatic\.com|cloudflare\.com|cloudfront\.net|akamaihd\.net|fbcdn\.net|twimg\.com|jsdelivr\.net|unpkg\.com|googletagmanager\.com|google-analytics\.com)\S*`),
	},
	{
		ID:      "asset-links",
		Pattern: regexp.MustCompile(`(?i)\bhttps?://\S+\.(?:css|js|mjs|woff2?|ttf|eot|png|jpe?g|gif|svg|webp|ico)(?:\?\S*)?`),
	},
	{
		ID:      "pseudo-protocols",
		Pattern: regexp.MustCompile(`(?i)\b(?:data:[a-z0-9/+.-]+;[^\s"']*|mailto:[^\s"']+|tel:[+0-9().\s-]{4,}|javascript:[^\s"']*)`),
	},
	{
		ID: "selector-fragments",
		// Style/selector text that escaped into the corpus: ".cls { ... }",
		// "#id > div", "@media (...)".
		Pattern: regexp.MustCompile(`(?m)(?:[.#][a-zA-Z][\w-]*\s*[{>~+][^}\n]*}?|@media[^{\n]*\{?)`),
	},
	{
		ID:      "ui-microcopy",
		Pattern: regexp.MustCompile(`(?i)\b(?:loading\.{0,3}|please wait\.{0,3}|cookie settings|accept all cookies|skip to (?:main )?content)\b`),
	},
}

// BoilerplateFilter applies the rule table to a copy of the corpus text.
//
// The output's length differs from the input's, so it must never reach the
// match finder: finder offsets have to stay aligned with the normalizer's
// NodeMap. Filtered text is for heuristics only (candidate classification).
type BoilerplateFilter struct {
	rules []FilterRule
}

// NewBoilerplateFilter returns a filter with the default rule table.
func NewBoilerplateFilter() *BoilerplateFilter {
	return &BoilerplateFilter{rules: boilerplateRules}
}

// NewBoilerplateFilterWithRules lets tests exercise rules in isolation.
func NewBoilerplateFilterWithRules(rules []FilterRule) *BoilerplateFilter {
	return &BoilerplateFilter{rules: rules}
}

// Rules exposes the table for inspection (CLI `rules` listing).
func (f *BoilerplateFilter) Rules() []FilterRule {
	out := make([]FilterRule, len(f.rules))
	copy(out, f.rules)
	return out
}

// Filter runs every enabled rule in order over its own copy of text.
func (f *BoilerplateFilter) Filter(text string) string {
	out := text
	for _, r := range f.rules {
		if r.Disabled {
			continue
		}
		out = r.Pattern.ReplaceAllString(out, r.Replace)
	}
	return out
}
