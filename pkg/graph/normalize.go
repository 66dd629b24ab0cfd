package graph

import (
	"strings"
	"unicode"
)

// NormalizeLabel lowercases a label and strips everything that is not a word
// character. Word characters are Unicode letters and digits, so labels in any
// script survive normalization while whitespace and punctuation do not.
//
// Two labels that normalize to the same string refer to the same entity for
// resolution purposes. An empty result means the label carries no usable
// identity and must never be matched or auto-created.
func NormalizeLabel(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeRelation lowercases a relation label and collapses every run of
// non-word characters into a single underscore joiner. Leading and trailing
// joiners are trimmed: "Works  At!" and "works_at" normalize identically.
//
// The normalized form is the duplicate key for relations: a relation is a
// duplicate only if source, target, and this normalized label all match.
func NormalizeRelation(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	pendingJoin := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingJoin && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingJoin = false
			b.WriteRune(r)
		} else {
			pendingJoin = true
		}
	}
	return b.String()
}
