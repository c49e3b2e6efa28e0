package scan

import (
	"regexp"
	"strings"
)

// ExtractRule names one indicator pattern. Like the boilerplate table, rules
// are ordered and individually testable; earlier rules claim their text so a
// URL is not re-reported as the domain inside it.
type ExtractRule struct {
	ID      string
	Type    string
	Pattern *regexp.Regexp
}

// extractRules covers the indicator vocabulary, defanged forms included.
// Order matters: urls before domains, sha256 before sha1 before md5.
var extractRules = []ExtractRule{
	{
		ID:      "url",
		Type:    "url",
		Pattern: regexp.MustCompile(`(?i)\bh(?:xx|tt)ps?://[a-z0-9.\[\]()-]+(?:/[^\s"'<>]*)?`),
	},
	{
		ID:      "sha256",
		Type:    "sha256",
		Pattern: regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`),
	},
	{
		ID:      "sha1",
		Type:    "sha1",
		Pattern: regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`),
	},
	{
		ID:      "md5",
		Type:    "md5",
		Pattern: regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`),
	},
	{
		ID:      "email",
		Type:    "email",
		Pattern: regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+(?:@|\[at\])[a-z0-9.-]+\.[a-z]{2,}\b`),
	},
	{
		ID:      "ipv4",
		Type:    "ipv4",
		Pattern: regexp.MustCompile(`\b(?:\d{1,3}(?:\.|\[\.\])){3}\d{1,3}\b`),
	},
	{
		ID:      "ipv6",
		Type:    "ipv6",
		Pattern: regexp.MustCompile(`\b(?:[a-fA-F0-9]{1,4}:){2,7}[a-fA-F0-9]{1,4}\b`),
	},
	{
		ID:      "cve",
		Type:    "cve",
		Pattern: regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`),
	},
	{
		ID:   "domain",
		Type: "domain",
		// Dotted or bracket-defanged labels with a plausible TLD.
		Pattern: regexp.MustCompile(`(?i)\b[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:(?:\.|\[\.\])[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*(?:\.|\[\.\])[a-z]{2,}\b`),
	},
}

// nonIndicatorTLDs drop domain candidates that are almost always page
// furniture rather than infrastructure worth a lookup.
var nonIndicatorTLDs = map[string]bool{
	"css": true, "js": true, "png": true, "jpg": true, "jpeg": true,
	"gif": true, "svg": true, "ico": true, "woff": true, "woff2": true,
	"html": true, "htm": true,
}

// Extractor pulls indicator-shaped values out of corpus text. Classification
// runs against the boilerplate-filtered copy so asset noise never becomes a
// candidate; the resulting values are then matched against the unfiltered
// corpus, whose offsets stay NodeMap-aligned.
type Extractor struct {
	rules []ExtractRule
}

// NewExtractor returns an extractor with the default pattern table.
func NewExtractor() *Extractor {
	return &Extractor{rules: extractRules}
}

// Rules exposes the table for inspection.
func (e *Extractor) Rules() []ExtractRule {
	out := make([]ExtractRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Extract returns unique requested values found in text, in first-seen order.
// Text claimed by an earlier rule is blanked before later rules run.
func (e *Extractor) Extract(text string) []RequestedValue {
	working := text
	seen := make(map[string]bool)
	var out []RequestedValue

	for _, rule := range e.rules {
		matches := rule.Pattern.FindAllString(working, -1)
		if len(matches) == 0 {
			continue
		}
		working = rule.Pattern.ReplaceAllStringFunc(working, func(m string) string {
			return strings.Repeat(" ", len(m))
		})
		for _, m := range matches {
			if rule.ID == "domain" && !plausibleDomain(m) {
				continue
			}
			key := NormalizeValue(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, RequestedValue{
				Type:  rule.Type,
				Value: m,
				Kind:  DiscoveryPattern,
			})
		}
	}
	return out
}

func plausibleDomain(v string) bool {
	refanged := strings.ReplaceAll(v, "[.]", ".")
	idx := strings.LastIndex(refanged, ".")
	if idx < 0 {
		return false
	}
	tld := strings.ToLower(refanged[idx+1:])
	return !nonIndicatorTLDs[tld]
}
