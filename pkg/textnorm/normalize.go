// Package textnorm canonicalizes free text (procedure names, drug names,
// spreadsheet cells) so that it can be compared regardless of case,
// diacritics, punctuation and spacing.
package textnorm

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes compatibility characters and drops the
// combining marks left behind ("Colecistectomia Videolaparoscópica" keeps
// its letters but loses the acute accent).
var foldDiacritics = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases text, folds diacritics, replaces every character
// outside [a-z0-9] with a space, collapses runs of whitespace and trims.
//
// Normalize is total and idempotent: Normalize(Normalize(x)) == Normalize(x).
// Empty or punctuation-only input yields "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	folded, _, err := transform.String(foldDiacritics, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Tokens returns the whitespace-separated words of the normalized text.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// TokenSet returns the distinct tokens of text in sorted order.
func TokenSet(text string) []string {
	return Unique(Tokens(text))
}

// Unique sorts tokens and removes duplicates. The input slice is not modified.
func Unique(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, len(tokens))
	copy(out, tokens)
	sort.Strings(out)

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// RemoveStopWords drops every token present in stopWords. When removal
// would leave nothing, the original tokens are returned unchanged.
func RemoveStopWords(tokens []string, stopWords map[string]struct{}) []string {
	if len(stopWords) == 0 || len(tokens) == 0 {
		return tokens
	}
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return tokens
	}
	return kept
}
