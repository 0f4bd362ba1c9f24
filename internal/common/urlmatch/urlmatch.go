// Package urlmatch compiles host allowlist rules for article URLs.
//
// Rule syntax:
//
//   - Exact (no prefix): case-insensitive host match
//     "medium.com" matches "medium.com", "MEDIUM.COM"
//
//   - Wildcard (*): case-insensitive, * matches any characters
//     "*.medium.com" matches "blog.medium.com", "a.b.medium.com"
//
//   - Regexp (~): case-sensitive regular expression
//
//   - Regexp (~*): case-insensitive regular expression
package urlmatch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type ruleKind int

const (
	ruleExact ruleKind = iota
	ruleWildcard
	ruleRegexp
)

type rule struct {
	original string
	kind     ruleKind
	clean    string
	re       *regexp.Regexp
}

// Matcher holds a compiled host allowlist. A nil or empty Matcher allows
// every host.
type Matcher struct {
	rules []rule
}

// Compile builds a Matcher from allowlist rule strings. Compilation happens
// once at configuration load; an invalid rule fails the whole list.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{}

	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			return nil, fmt.Errorf("allowlist rule cannot be empty")
		}

		r, err := compileRule(pattern)
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, r)
	}

	return m, nil
}

func compileRule(pattern string) (rule, error) {
	switch {
	case strings.HasPrefix(pattern, "~*"):
		re, err := regexp.Compile("(?i)" + pattern[2:])
		if err != nil {
			return rule{}, fmt.Errorf("invalid allowlist regexp %q: %w", pattern, err)
		}
		return rule{original: pattern, kind: ruleRegexp, clean: pattern[2:], re: re}, nil

	case strings.HasPrefix(pattern, "~"):
		re, err := regexp.Compile(pattern[1:])
		if err != nil {
			return rule{}, fmt.Errorf("invalid allowlist regexp %q: %w", pattern, err)
		}
		return rule{original: pattern, kind: ruleRegexp, clean: pattern[1:], re: re}, nil

	case strings.Contains(pattern, "*"):
		return rule{original: pattern, kind: ruleWildcard, clean: strings.ToLower(pattern)}, nil

	default:
		return rule{original: pattern, kind: ruleExact, clean: pattern}, nil
	}
}

// Empty reports whether the matcher has no rules and therefore allows all.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.rules) == 0
}

// AllowsURL reports whether rawURL's host passes the allowlist. An empty
// matcher allows everything.
func (m *Matcher) AllowsURL(rawURL string) bool {
	if m.Empty() {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	return m.AllowsHost(u.Hostname())
}

// AllowsHost reports whether host matches any allowlist rule.
func (m *Matcher) AllowsHost(host string) bool {
	if m.Empty() {
		return true
	}

	for _, r := range m.rules {
		if r.match(host) {
			return true
		}
	}
	return false
}

func (r rule) match(host string) bool {
	switch r.kind {
	case ruleRegexp:
		return r.re.MatchString(host)
	case ruleWildcard:
		return matchWildcard(strings.ToLower(host), r.clean)
	default:
		return strings.EqualFold(host, r.clean)
	}
}

// matchWildcard matches text against a pattern where each * spans any run
// of characters, including none.
func matchWildcard(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(text, last) {
		return false
	}
	text = text[:len(text)-len(last)]

	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		idx := strings.Index(text, parts[i])
		if idx == -1 {
			return false
		}
		text = text[idx+len(parts[i]):]
	}

	return true
}
