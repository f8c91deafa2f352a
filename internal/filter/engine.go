// Package filter implements the post matching engine used by the relay.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"feedsync/internal/model"
)

// Kind is the type of a relay rule.
type Kind string

// Rule kinds.
const (
	Include   Kind = "include"
	Exclude   Kind = "exclude"
	IncludeRe Kind = "include_re"
	ExcludeRe Kind = "exclude_re"
)

// Scope selects the post fields a rule looks at.
type Scope string

// Rule scopes.
const (
	ScopeUsername Scope = "username"
	ScopeContent  Scope = "content"
	ScopeAll      Scope = "all"
)

// Rule is a single include or exclude condition.
type Rule struct {
	Kind  Kind
	Scope Scope
	Value string
}

// Match checks whether a post passes the given set of rules.
// If no rules are provided, the post always passes.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func Match(post model.Post, rules []Rule) bool {
	if len(rules) == 0 {
		return true
	}

	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range rules {
		switch r.Kind {
		case Include, IncludeRe:
			hasIncludes = true
			if matchesRule(post, r) {
				anyIncludeMatched = true
			}
		case Exclude, ExcludeRe:
			if matchesRule(post, r) {
				return false
			}
		}
	}

	return !hasIncludes || anyIncludeMatched
}

func matchesRule(post model.Post, r Rule) bool {
	text := textForScope(post, r.Scope)
	switch r.Kind {
	case Include, Exclude:
		return strings.Contains(text, strings.ToLower(r.Value))
	case IncludeRe, ExcludeRe:
		re, err := regexp.Compile("(?i)" + r.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

func textForScope(post model.Post, scope Scope) string {
	switch scope {
	case ScopeUsername:
		return strings.ToLower(post.Username)
	case ScopeContent:
		return strings.ToLower(post.Content)
	default:
		return strings.ToLower(post.Username + " " + post.Content)
	}
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
