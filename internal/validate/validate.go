// Package validate scans raw bundle source text for forbidden capability
// usage before any compilation is attempted.
//
// The check is advisory hardening, not a security boundary: an empty result
// means "proceed to compile", not "is safe". Validation is pure and total:
// it never fails, it only reports.
package validate

import (
	"strings"

	"github.com/frameloom-labs/frameloom/pkg/component"
)

// RuleDef defines a single forbidden-capability rule.
type RuleDef struct {
	// ID is the unique rule identifier, e.g. "FL001"
	ID string
	// Name is the human-readable name, e.g. "capability.network"
	Name string
	// Description explains what the rule rejects
	Description string
	// Check scans source text and returns violations
	Check func(path, source string) []component.Violation
}

// Rules returns the fixed, ordered rule list. Order is part of the
// contract: violations are reported in rule order, then line order.
func Rules() []RuleDef {
	return []RuleDef{
		NetworkAccess,
		StorageAccess,
		DynamicEval,
		DynamicLoad,
		ProcessInternals,
		MutableGlobals,
	}
}

// File runs every rule against a single file's source text.
func File(path, source string) []component.Violation {
	var out []component.Violation
	for _, rule := range Rules() {
		out = append(out, rule.Check(path, source)...)
	}
	return out
}

// Bundle runs the full rule set across every file in a bundle.
func Bundle(b *component.Bundle) []component.Violation {
	var out []component.Violation
	for _, f := range b.Files {
		// Style and data files carry no executable statements.
		if f.Language == component.LanguageStyle || f.Language == component.LanguageData {
			continue
		}
		out = append(out, File(f.Path, f.Content)...)
	}
	return out
}

// scanTokens reports a violation for every line containing one of the
// given tokens. Matching is done against a comment-stripped copy of the
// line so commented-out code does not trip the rules twice over.
func scanTokens(path, source, ruleID, reason string, tokens []string) []component.Violation {
	var out []component.Violation
	for i, line := range strings.Split(source, "\n") {
		code := stripComment(line)
		for _, tok := range tokens {
			if containsToken(code, tok) {
				out = append(out, component.Violation{
					File:   path,
					Line:   i + 1,
					Rule:   ruleID,
					Reason: reason + ": " + tok,
				})
				break
			}
		}
	}
	return out
}

// stripComment removes a trailing # comment, respecting string literals.
func stripComment(line string) string {
	inStr := false
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inStr:
			if c == '\\' {
				i++
			} else if c == quote {
				inStr = false
			}
		case c == '"' || c == '\'':
			inStr = true
			quote = c
		case c == '#':
			return line[:i]
		}
	}
	return line
}

// containsToken reports whether code contains tok as a whole identifier
// reference (not a substring of a longer identifier).
func containsToken(code, tok string) bool {
	idx := 0
	for {
		j := strings.Index(code[idx:], tok)
		if j < 0 {
			return false
		}
		j += idx
		before := byte(0)
		if j > 0 {
			before = code[j-1]
		}
		after := byte(0)
		if j+len(tok) < len(code) {
			after = code[j+len(tok)]
		}
		if !isIdentByte(before) && !isIdentByte(after) {
			return true
		}
		idx = j + len(tok)
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
