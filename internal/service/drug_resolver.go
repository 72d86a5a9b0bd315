package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/textnorm"
)

// minFuzzyAliasLength keeps short aliases ("cipro") out of the typo fallback.
const minFuzzyAliasLength = 5

type drugAlias struct {
	canonical string
	alias     string // normalized
	compact   string // normalized, spaces removed
}

type aliasSpan struct {
	start, end int
	canonical  string
}

// DrugAliasResolver maps free text onto canonical drug names.
// It is built once per batch and is read-only afterwards.
type DrugAliasResolver struct {
	aliases        []drugAlias // longest alias first
	canonicalNames []string
	fuzzyThreshold float64
}

// NewDrugAliasResolver validates the alias dictionary and prepares the
// normalized aliases. A dictionary that is empty, has an empty canonical
// name or alias list, or maps one alias onto two drugs is rejected with
// domain.ErrInvalidAliasDictionary.
func NewDrugAliasResolver(dictionary map[string][]string, fuzzyThreshold float64) (*DrugAliasResolver, error) {
	if len(dictionary) == 0 {
		return nil, fmt.Errorf("%w: dictionary is empty", domain.ErrInvalidAliasDictionary)
	}

	r := &DrugAliasResolver{fuzzyThreshold: fuzzyThreshold}
	owner := make(map[string]string)

	for name, aliases := range dictionary {
		canonical := strings.ToUpper(strings.TrimSpace(name))
		if canonical == "" {
			return nil, fmt.Errorf("%w: empty canonical drug name", domain.ErrInvalidAliasDictionary)
		}
		if len(aliases) == 0 {
			return nil, fmt.Errorf("%w: drug %s has no aliases", domain.ErrInvalidAliasDictionary, canonical)
		}
		r.canonicalNames = append(r.canonicalNames, canonical)

		for _, raw := range aliases {
			alias := textnorm.Normalize(raw)
			if alias == "" {
				return nil, fmt.Errorf("%w: drug %s has an empty alias %q", domain.ErrInvalidAliasDictionary, canonical, raw)
			}
			if prev, ok := owner[alias]; ok {
				if prev != canonical {
					return nil, fmt.Errorf("%w: alias %q maps to both %s and %s",
						domain.ErrInvalidAliasDictionary, raw, prev, canonical)
				}
				continue
			}
			owner[alias] = canonical
			r.aliases = append(r.aliases, drugAlias{
				canonical: canonical,
				alias:     alias,
				compact:   strings.ReplaceAll(alias, " ", ""),
			})
		}
	}

	sort.Strings(r.canonicalNames)
	sort.Slice(r.aliases, func(i, j int) bool {
		a, b := r.aliases[i], r.aliases[j]
		if len(a.alias) != len(b.alias) {
			return len(a.alias) > len(b.alias)
		}
		if a.canonical != b.canonical {
			return a.canonical < b.canonical
		}
		return a.alias < b.alias
	})
	return r, nil
}

// CanonicalNames returns the known drugs in sorted order.
func (r *DrugAliasResolver) CanonicalNames() []string {
	return append([]string(nil), r.canonicalNames...)
}

// Extract returns the canonical drugs mentioned in text, ordered by the
// position of their first mention and without duplicates. No mention yields
// an empty result.
func (r *DrugAliasResolver) Extract(text string) []string {
	return r.ExtractNormalized(textnorm.Normalize(text))
}

// ExtractNormalized is Extract for text that is already normalized.
func (r *DrugAliasResolver) ExtractNormalized(normalized string) []string {
	if normalized == "" {
		return []string{}
	}

	// Longer aliases claim their span first so that an alias embedded in a
	// longer one ("cipro" in "ciprofloxacino") is not reported again.
	var spans []aliasSpan
	for _, a := range r.aliases {
		for offset := 0; offset < len(normalized); {
			i := strings.Index(normalized[offset:], a.alias)
			if i < 0 {
				break
			}
			start := offset + i
			end := start + len(a.alias)
			if !overlapsAny(spans, start, end) {
				spans = append(spans, aliasSpan{start: start, end: end, canonical: a.canonical})
			}
			offset = start + 1
		}
	}

	if len(spans) == 0 {
		return r.fuzzyExtract(normalized)
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	found := make([]string, 0, len(spans))
	seen := make(map[string]struct{}, len(spans))
	for _, s := range spans {
		if _, dup := seen[s.canonical]; dup {
			continue
		}
		seen[s.canonical] = struct{}{}
		found = append(found, s.canonical)
	}
	return found
}

// fuzzyExtract tolerates typos such as "cefazolna". Only words of at least
// five letters, plus the whole text with spaces removed, are compared.
func (r *DrugAliasResolver) fuzzyExtract(normalized string) []string {
	var candidates []string
	for _, tok := range strings.Fields(normalized) {
		if len(tok) >= minFuzzyAliasLength {
			candidates = append(candidates, tok)
		}
	}
	if compact := strings.ReplaceAll(normalized, " ", ""); len(compact) >= minFuzzyAliasLength {
		candidates = append(candidates, compact)
	}

	found := []string{}
	seen := make(map[string]struct{})
	for _, cand := range candidates {
		best, bestScore := "", 0.0
		for _, a := range r.aliases {
			if len(a.compact) < minFuzzyAliasLength {
				continue
			}
			score := Ratio(cand, a.compact)
			if score >= r.fuzzyThreshold && (score > bestScore || (score == bestScore && a.canonical < best)) {
				best, bestScore = a.canonical, score
			}
		}
		if best == "" {
			continue
		}
		if _, dup := seen[best]; !dup {
			seen[best] = struct{}{}
			found = append(found, best)
		}
	}
	return found
}

func overlapsAny(spans []aliasSpan, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}
