package permit

import "testing"

func TestCompilePatternRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "do*c", "doc:re*ad", "*suffix"} {
		if _, err := CompilePattern(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	for _, raw := range []string{"*", "doc", "doc:*", "doc:*:read", "projects:*:documents"} {
		if _, err := CompilePattern(raw); err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
	}
}

func TestPatternMatching(t *testing.T) {
	cases := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "a:b:c", true},
		{"doc", "doc", true},
		{"doc", "DOC", false},
		{"doc", "doc:1", false},
		// Trailing wildcard requires at least one further segment.
		{"doc:*", "doc:1", true},
		{"doc:*", "doc:1:meta", true},
		{"doc:*", "doc", false},
		{"doc:*", "read", false},
		{"doc:*", "docs:1", false},
		// Mid-pattern wildcard spans exactly one segment.
		{"projects:*:documents", "projects:123:documents", true},
		{"projects:*:documents", "projects:123:456:documents", false},
		{"projects:*:documents", "projects:documents", false},
		{"a:*:c:*", "a:b:c:d", true},
		{"a:*:c:*", "a:b:c", false},
	}
	for _, tc := range cases {
		p, err := CompilePattern(tc.pattern)
		if err != nil {
			t.Fatalf("CompilePattern(%q): %v", tc.pattern, err)
		}
		if got := p.Match(tc.value); got != tc.want {
			t.Fatalf("%q match %q = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}

func TestLenientPatternNeverMatches(t *testing.T) {
	p := compileLenientPattern("do*c")
	for _, v := range []string{"doc", "do*c", "", "anything"} {
		if p.Match(v) {
			t.Fatalf("malformed pattern must never match, matched %q", v)
		}
	}
}
