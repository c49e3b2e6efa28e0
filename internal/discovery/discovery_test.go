package discovery

import (
	"strings"
	"testing"
)

func TestParseCandidatesPlainArray(t *testing.T) {
	cands, err := ParseCandidates(`[
		{"type": "domain", "value": "evil.example.org", "reason": "named as C2", "confidence": 0.92},
		{"type": "IPv4", "value": " 10.0.0.1 ", "confidence": 0.7}
	]`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].Value != "evil.example.org" || cands[0].Confidence != 0.92 {
		t.Errorf("candidate 0 = %+v", cands[0])
	}
	if cands[1].Type != "ipv4" {
		t.Errorf("type not lowercased: %q", cands[1].Type)
	}
	if cands[1].Value != "10.0.0.1" {
		t.Errorf("value not trimmed: %q", cands[1].Value)
	}
}

func TestParseCandidatesMarkdownFenced(t *testing.T) {
	resp := "Here are the indicators I found:\n```json\n" +
		`[{"type":"domain","value":"evil.example.org","confidence":0.8}]` +
		"\n```\nLet me know if you need more."
	cands, err := ParseCandidates(resp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cands) != 1 || cands[0].Value != "evil.example.org" {
		t.Errorf("candidates = %+v", cands)
	}
}

func TestParseCandidatesBracketsInsideStrings(t *testing.T) {
	// Defanged values carry literal brackets; the balanced-scan must not
	// count brackets inside JSON strings.
	cands, err := ParseCandidates(`[{"type":"domain","value":"dl[.]evil.org","reason":"defanged [sic]","confidence":0.9}]`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cands) != 1 || cands[0].Value != "dl[.]evil.org" {
		t.Errorf("candidates = %+v", cands)
	}
}

func TestParseCandidatesDiscardsMalformed(t *testing.T) {
	cands, err := ParseCandidates(`[
		{"type":"domain","value":"good.example.org","confidence":0.9},
		{"type":"","value":"no-type.example.org"},
		{"type":"domain","value":"   "}
	]`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cands) != 1 || cands[0].Value != "good.example.org" {
		t.Errorf("candidates = %+v", cands)
	}
}

func TestParseCandidatesEmptyArray(t *testing.T) {
	cands, err := ParseCandidates("[]")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("candidates = %+v, want none", cands)
	}
}

func TestParseCandidatesNoArray(t *testing.T) {
	if _, err := ParseCandidates("I could not find any indicators."); err == nil {
		t.Error("expected an error for a response without a JSON array")
	}
	if _, err := ParseCandidates(`[{"type":"domain"`); err == nil {
		t.Error("expected an error for an unbalanced array")
	}
}

func TestTruncate(t *testing.T) {
	short := "small corpus"
	if Truncate(short) != short {
		t.Error("short corpora pass through untouched")
	}
	long := strings.Repeat("x", maxExcerptBytes+100)
	if got := Truncate(long); len(got) != maxExcerptBytes {
		t.Errorf("truncated length = %d, want %d", len(got), maxExcerptBytes)
	}
}
