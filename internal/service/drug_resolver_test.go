package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prophylaxis-audit/internal/domain"
)

func newTestResolver(t *testing.T) *DrugAliasResolver {
	t.Helper()
	r, err := NewDrugAliasResolver(domain.DefaultDrugAliases(), 0.84)
	require.NoError(t, err)
	return r
}

func TestDrugAliasResolver_Extract(t *testing.T) {
	resolver := newTestResolver(t)

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"brand name", "KEFAZOL 2G", []string{"CEFAZOLINA"}},
		{"order of first mention", "Cefazolina 2g + Metronidazol 500mg", []string{"CEFAZOLINA", "METRONIDAZOL"}},
		{"reverse order", "Metronidazol 500mg + Kefazol 2g", []string{"METRONIDAZOL", "CEFAZOLINA"}},
		{"duplicates collapse", "kefazol 1g + cefazolina 1g", []string{"CEFAZOLINA"}},
		{"short alias inside longer alias", "Ciprofloxacino 400mg", []string{"CIPROFLOXACINO"}},
		{"alias with plus sign", "Amoxicilina + Clavulanato 1,2g", []string{"AMOXICILINA_CLAVULANATO"}},
		{"diacritics and case", "ceftriaxona 1G", []string{"CEFTRIAXONE"}},
		{"typo fallback", "cefazolna 2g", []string{"CEFAZOLINA"}},
		{"transposed letters", "cefzaolina 2g", []string{"CEFAZOLINA"}},
		{"unknown drug", "Dipirona 1g", []string{}},
		{"empty text", "", []string{}},
		{"punctuation only", "--- / ---", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolver.Extract(tt.text))
		})
	}
}

func TestDrugAliasResolver_LongestAliasFirst(t *testing.T) {
	resolver, err := NewDrugAliasResolver(map[string][]string{
		"CEF_GENERICO": {"CEF"},
		"CEFAZOLINA":   {"CEFAZOLINA"},
	}, 0.84)
	require.NoError(t, err)

	assert.Equal(t, []string{"CEFAZOLINA"}, resolver.Extract("cefazolina 2g"))
	assert.Equal(t, []string{"CEF_GENERICO", "CEFAZOLINA"}, resolver.Extract("cef 1g e cefazolina 2g"))
}

func TestDrugAliasResolver_CanonicalNamesUpperCased(t *testing.T) {
	resolver, err := NewDrugAliasResolver(map[string][]string{
		"cefazolina": {"kefazol"},
	}, 0.84)
	require.NoError(t, err)

	assert.Equal(t, []string{"CEFAZOLINA"}, resolver.CanonicalNames())
	assert.Equal(t, []string{"CEFAZOLINA"}, resolver.Extract("Kefazol 2g"))
}

func TestNewDrugAliasResolver_InvalidDictionary(t *testing.T) {
	tests := []struct {
		name string
		dict map[string][]string
	}{
		{"empty dictionary", map[string][]string{}},
		{"nil dictionary", nil},
		{"empty canonical name", map[string][]string{" ": {"KEFAZOL"}}},
		{"no aliases", map[string][]string{"CEFAZOLINA": {}}},
		{"alias normalizes to nothing", map[string][]string{"CEFAZOLINA": {"+++"}}},
		{"alias shared by two drugs", map[string][]string{
			"CEFAZOLINA": {"KEFAZOL"},
			"CEFUROXIMA": {"kefazol"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDrugAliasResolver(tt.dict, 0.84)
			assert.ErrorIs(t, err, domain.ErrInvalidAliasDictionary)
		})
	}
}
