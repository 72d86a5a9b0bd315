package service

import (
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/prophylaxis-audit/pkg/textnorm"
)

// Ratio is the insert/delete similarity of two strings in [0,1]:
// 1 - indel(a, b) / (len(a) + len(b)), where indel counts the characters
// outside their longest common subsequence. Two empty strings score 1.
// This is the scale the match and drug thresholds are expressed in.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 1 - float64(edlib.LCSEditDistance(a, b))/float64(total)
}

// TokenSetRatio compares two normalized texts as sets of word tokens.
// Order and repetition are ignored. When the token set of one text is
// contained in the other the score is 1. Otherwise the shared tokens are
// compared against each side's full token list and the best Ratio wins.
// An empty side scores 0. The score is symmetric.
func TokenSetRatio(a, b string) float64 {
	return tokenSetRatio(strings.Fields(a), strings.Fields(b))
}

func tokenSetRatio(tokensA, tokensB []string) float64 {
	setA := textnorm.Unique(tokensA)
	setB := textnorm.Unique(tokensB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared, onlyA, onlyB := splitSorted(setA, setB)
	if len(shared) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}

	base := strings.Join(shared, " ")
	fullA := joinNonEmpty(base, strings.Join(onlyA, " "))
	fullB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := Ratio(fullA, fullB)
	if base != "" {
		best = maxFloat(best, Ratio(base, fullA), Ratio(base, fullB))
	}
	return best
}

// splitSorted partitions two sorted unique token lists into the shared
// tokens and the tokens found only on each side.
func splitSorted(a, b []string) (shared, onlyA, onlyB []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			shared = append(shared, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return shared, onlyA, onlyB
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func maxFloat(first float64, rest ...float64) float64 {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}
