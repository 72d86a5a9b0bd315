package service

import (
	"sort"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/pkg/textnorm"
)

// MatchResult links a surgery procedure to a protocol rule.
type MatchResult struct {
	Rule   *domain.ProtocolRule
	Score  float64
	Method domain.MatchMethod
}

// Matched reports whether a rule was selected.
func (m MatchResult) Matched() bool {
	return m.Rule != nil
}

// RuleID returns the matched identifier or nil.
func (m MatchResult) RuleID() *string {
	if m.Rule == nil {
		return nil
	}
	id := m.Rule.RuleID
	return &id
}

// Candidate is a scored rule returned by ProcedureMatcher.Candidates.
type Candidate struct {
	RuleID    string  `json:"rule_id"`
	Section   string  `json:"section"`
	Procedure string  `json:"procedure"`
	Score     float64 `json:"score"`
}

// ProcedureMatcher selects the protocol rule for a surgery procedure.
// Lookup order: configured translation, exact normalized name, then the
// best token-set score at or above the threshold. Equal scores go to the
// lexicographically lowest rule_id.
type ProcedureMatcher struct {
	index        *RuleIndex
	threshold    float64
	stopWords    map[string]struct{}
	translations map[string][]string // normalized surgery name -> normalized protocol names
	ruleTokens   [][]string          // rule tokens without stop words
}

// NewProcedureMatcher prepares the matcher for one rule index.
func NewProcedureMatcher(index *RuleIndex, cfg domain.AuditConfig) *ProcedureMatcher {
	m := &ProcedureMatcher{
		index:        index,
		threshold:    cfg.MatchThreshold,
		stopWords:    make(map[string]struct{}, len(cfg.StopWords)),
		translations: make(map[string][]string, len(cfg.ProcedureTranslations)),
		ruleTokens:   make([][]string, len(index.tokens)),
	}
	for _, w := range cfg.StopWords {
		if n := textnorm.Normalize(w); n != "" {
			m.stopWords[n] = struct{}{}
		}
	}
	for from, to := range cfg.ProcedureTranslations {
		key := textnorm.Normalize(from)
		if key == "" {
			continue
		}
		var targets []string
		for _, part := range strings.Split(to, "/") {
			if n := textnorm.Normalize(part); n != "" {
				targets = append(targets, n)
			}
		}
		if len(targets) > 0 {
			m.translations[key] = targets
		}
	}
	for i, toks := range index.tokens {
		m.ruleTokens[i] = textnorm.RemoveStopWords(toks, m.stopWords)
	}
	return m
}

// Match normalizes query and selects its rule.
func (m *ProcedureMatcher) Match(query string) MatchResult {
	return m.MatchNormalized(textnorm.Normalize(query))
}

// MatchNormalized selects the rule for an already normalized procedure.
// An empty query or a best score below the threshold yields MatchNone.
func (m *ProcedureMatcher) MatchNormalized(query string) MatchResult {
	if query == "" {
		return MatchResult{Method: domain.MatchNone}
	}

	if targets, ok := m.translations[query]; ok {
		for _, t := range targets {
			if rule, ok := m.index.LookupExact(t); ok {
				return MatchResult{Rule: rule, Score: 1, Method: domain.MatchTranslatedExact}
			}
		}
		if res := m.bestFuzzy(targets); res.Matched() {
			res.Method = domain.MatchTranslatedFuzzy
			return res
		}
	}

	if rule, ok := m.index.LookupExact(query); ok {
		return MatchResult{Rule: rule, Score: 1, Method: domain.MatchExact}
	}

	if res := m.bestFuzzy([]string{query}); res.Matched() {
		res.Method = domain.MatchFuzzy
		return res
	}
	return MatchResult{Method: domain.MatchNone}
}

// Score is the fuzzy score between two procedure names after normalization
// and stop-word removal.
func (m *ProcedureMatcher) Score(a, b string) float64 {
	ta := textnorm.RemoveStopWords(textnorm.Tokens(a), m.stopWords)
	tb := textnorm.RemoveStopWords(textnorm.Tokens(b), m.stopWords)
	return tokenSetRatio(ta, tb)
}

func (m *ProcedureMatcher) bestFuzzy(queries []string) MatchResult {
	bestIdx, bestScore := -1, 0.0
	for _, q := range queries {
		qTokens := textnorm.RemoveStopWords(strings.Fields(q), m.stopWords)
		for i, rTokens := range m.ruleTokens {
			score := tokenSetRatio(qTokens, rTokens)
			if bestIdx < 0 || score > bestScore ||
				(score == bestScore && m.index.rules[i].RuleID < m.index.rules[bestIdx].RuleID) {
				bestIdx, bestScore = i, score
			}
		}
	}
	if bestIdx < 0 || bestScore < m.threshold || bestScore == 0 {
		return MatchResult{Method: domain.MatchNone}
	}
	return MatchResult{Rule: &m.index.rules[bestIdx], Score: bestScore}
}

// Candidates lists the k best scored rules for query, highest score first.
// Rules scoring 0 are omitted. k <= 0 returns every scored rule.
func (m *ProcedureMatcher) Candidates(query string, k int) []Candidate {
	qTokens := textnorm.RemoveStopWords(textnorm.Tokens(query), m.stopWords)
	out := make([]Candidate, 0, len(m.ruleTokens))
	for i, rTokens := range m.ruleTokens {
		score := tokenSetRatio(qTokens, rTokens)
		if score == 0 {
			continue
		}
		r := m.index.rules[i]
		out = append(out, Candidate{RuleID: r.RuleID, Section: r.Section, Procedure: r.Procedure, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RuleID < out[j].RuleID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
