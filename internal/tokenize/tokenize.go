// Package tokenize normalizes free-text company metadata into terms.
// The rules are deliberately language-agnostic: no stemming, no stop
// words, no suffix stripping. Corporate boilerplate like "inc" or "llc"
// is kept and left for the scoring layer to discount.
package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTermLength is the minimum number of runes a token must have to
// count as a term. Single-character fragments ("t" from "don't", "s"
// from possessives) carry no signal.
const MinTermLength = 2

// Tokenize lower-cases text and splits it on every rune that is neither
// a Unicode letter nor a digit. Tokens shorter than MinTermLength or
// containing no letter at all (bare numbers, year fragments) are
// dropped. Order and duplicates are preserved.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(raw))
	for _, tok := range raw {
		if utf8.RuneCountInString(tok) < MinTermLength {
			continue
		}
		if !hasLetter(tok) {
			continue
		}
		terms = append(terms, tok)
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}

// TermSet collects the distinct terms across all given fields. Counting
// is presence-based: a term repeated a dozen times in one company's
// blurb still contributes a single occurrence.
func TermSet(fields ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range fields {
		for _, t := range Tokenize(f) {
			set[t] = struct{}{}
		}
	}
	return set
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
