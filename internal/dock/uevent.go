package dock

import (
	"bytes"
	"regexp"

	"codeberg.org/mutker/dockd/internal/errors"
)

// DefaultPatterns select Type-C partner attach/detach events and any
// event on a typec_* device type.
//
// Matching is done per field against the raw payload rather than by
// parsing the uevent schema, so unknown event layouts still work. The
// cost is that an unrelated event carrying a matching field also
// triggers a cable-state read; the read decides the outcome, so such a
// false positive re-applies the profile for the current dock state.
var DefaultPatterns = []string{
	`^(add|remove|change)@.*-partner$`,
	`^DEVTYPE=typec_`,
}

// Matcher decides whether a uevent concerns the dock connector.
type Matcher interface {
	Match(fields []string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(fields []string) bool

func (f MatcherFunc) Match(fields []string) bool {
	return f(fields)
}

// PatternMatcher matches when any field matches any pattern.
type PatternMatcher struct {
	patterns []*regexp.Regexp
}

// NewPatternMatcher compiles patterns. With no patterns, DefaultPatterns
// are used.
func NewPatternMatcher(patterns ...string) (*PatternMatcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	m := &PatternMatcher{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.New().Wrap(ErrInvalidPattern, err).WithData(p)
		}
		m.patterns = append(m.patterns, re)
	}

	return m, nil
}

func (m *PatternMatcher) Match(fields []string) bool {
	for _, field := range fields {
		for _, re := range m.patterns {
			if re.MatchString(field) {
				return true
			}
		}
	}

	return false
}

// SplitFields splits a raw uevent message into its NUL-terminated fields.
// Empty fields are dropped.
func SplitFields(msg []byte) []string {
	parts := bytes.Split(msg, []byte{0})
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) > 0 {
			fields = append(fields, string(p))
		}
	}

	return fields
}
