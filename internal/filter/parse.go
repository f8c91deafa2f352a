package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const regexPrefix = "re:"

// ParseRule parses a relay rule as written in configuration.
// Format: [-s username|content|all] [re:]<value...>
// The re: prefix turns an include or exclude rule into its regex variant.
func ParseRule(kind Kind, raw string) (Rule, error) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return Rule{}, errors.New("usage: [-s username|content|all] [re:]<value>")
	}

	scope := ScopeAll
	if len(parts) >= 2 && parts[0] == "-s" {
		switch Scope(parts[1]) {
		case ScopeUsername, ScopeContent, ScopeAll:
			scope = Scope(parts[1])
		default:
			return Rule{}, fmt.Errorf("invalid scope %q, use: username, content, all", parts[1])
		}
		parts = parts[2:]
	}

	value := strings.Join(parts, " ")
	if pattern, ok := strings.CutPrefix(value, regexPrefix); ok {
		if err := ValidateRegex(pattern); err != nil {
			return Rule{}, err
		}
		value = pattern
		switch kind {
		case Include:
			kind = IncludeRe
		case Exclude:
			kind = ExcludeRe
		}
	}

	if value == "" {
		return Rule{}, errors.New("rule value is required")
	}

	return Rule{Kind: kind, Scope: scope, Value: value}, nil
}

// ParseRules builds the relay rule set from include and exclude entries.
func ParseRules(include, exclude []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(include)+len(exclude))
	for _, group := range []struct {
		kind    Kind
		entries []string
	}{
		{kind: Include, entries: include},
		{kind: Exclude, entries: exclude},
	} {
		for _, raw := range lo.Compact(group.entries) {
			r, err := ParseRule(group.kind, raw)
			if err != nil {
				return nil, fmt.Errorf("parse %s rule %q: %w", group.kind, raw, err)
			}
			rules = append(rules, r)
		}
	}
	return rules, nil
}
