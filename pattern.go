package permit

import (
	"fmt"
	"strings"
)

// Pattern is a pre-compiled action/resource matcher. The grammar is closed:
// a bare "*" matches anything; otherwise the pattern is a colon-separated
// list of segments, each either a literal or "*". A "*" in the final
// position matches any non-empty remainder ("doc:*" matches "doc:read" and
// "doc:sub:read" but not "doc"); a "*" elsewhere matches exactly one segment
// ("projects:*:documents" matches "projects:123:documents").
//
// Patterns are compiled once, when a rule is created or updated, so a
// malformed pattern surfaces as a validation error instead of a silent
// non-match at evaluation time.
type Pattern struct {
	raw      string
	matchAll bool
	segments []patternSegment
	trailing bool
	valid    bool
}

type patternSegment struct {
	literal  string
	wildcard bool
}

// CompilePattern parses raw into a Pattern. A "*" embedded in a literal
// segment ("do*c") and the empty pattern are rejected.
func CompilePattern(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{raw: raw}, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if raw == Wildcard {
		return Pattern{raw: raw, matchAll: true, valid: true}, nil
	}
	parts := strings.Split(raw, ":")
	p := Pattern{raw: raw, segments: make([]patternSegment, 0, len(parts)), valid: true}
	for i, part := range parts {
		if part == Wildcard {
			if i == len(parts)-1 {
				p.trailing = true
				break
			}
			p.segments = append(p.segments, patternSegment{wildcard: true})
			continue
		}
		if strings.Contains(part, Wildcard) {
			return Pattern{raw: raw}, fmt.Errorf("%w: %q (wildcard must stand alone in its segment)", ErrInvalidPattern, raw)
		}
		p.segments = append(p.segments, patternSegment{literal: part})
	}
	return p, nil
}

// compileLenientPattern is the trusted bulk-import variant: a malformed
// pattern compiles to a pattern that never matches, keeping evaluation
// fail-closed instead of rejecting the whole import.
func compileLenientPattern(raw string) Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		return Pattern{raw: raw}
	}
	return p
}

// Match reports whether value satisfies the pattern.
func (p Pattern) Match(value string) bool {
	if !p.valid {
		return false
	}
	if p.matchAll {
		return true
	}
	parts := strings.Split(value, ":")
	if p.trailing {
		// literal prefix plus at least one further segment
		if len(parts) < len(p.segments)+1 {
			return false
		}
	} else if len(parts) != len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		if seg.wildcard {
			continue
		}
		if parts[i] != seg.literal {
			return false
		}
	}
	return true
}

func (p Pattern) String() string { return p.raw }

func compilePatterns(raws []string) ([]Pattern, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]Pattern, len(raws))
	for i, raw := range raws {
		p, err := CompilePattern(raw)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func compileLenientPatterns(raws []string) []Pattern {
	if len(raws) == 0 {
		return nil
	}
	out := make([]Pattern, len(raws))
	for i, raw := range raws {
		out[i] = compileLenientPattern(raw)
	}
	return out
}

func anyPatternMatches(patterns []Pattern, value string) bool {
	for _, p := range patterns {
		if p.Match(value) {
			return true
		}
	}
	return false
}
