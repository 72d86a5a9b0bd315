package units

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prophylaxis-audit/internal/domain"
)

func TestParseDose(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		amount float64
		unit   domain.DoseUnit
	}{
		{"grams", "2g", 2, domain.UnitGram},
		{"grams with space and comma", "1,5 g", 1.5, domain.UnitGram},
		{"milligrams", "900mg IV", 900, domain.UnitMilligram},
		{"upper case", "500 MG", 500, domain.UnitMilligram},
		{"mg per kg", "30 mg/kg", 30, domain.UnitMilligramPerKg},
		{"g per kg with spaces", "0.03 g / kg", 0.03, domain.UnitGramPerKg},
		{"gramas", "2 gramas", 2, domain.UnitGram},
		{"leading text", "Cefazolina 2g EV", 2, domain.UnitGram},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDose(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.amount, d.Amount, 1e-9)
			assert.Equal(t, tt.unit, d.Unit)
			assert.Equal(t, tt.raw, d.Raw)
		})
	}
}

func TestParseDose_Errors(t *testing.T) {
	_, err := ParseDose("")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ParseDose("   ")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ParseDose("1.000.000 UI")
	assert.ErrorIs(t, err, domain.ErrUnknownDoseUnit)

	_, err = ParseDose("conforme protocolo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("MG / KG")
	require.NoError(t, err)
	assert.Equal(t, domain.UnitMilligramPerKg, u)

	_, err = ParseUnit("mcg")
	assert.True(t, errors.Is(err, domain.ErrUnknownDoseUnit))
}

func TestToMilligrams(t *testing.T) {
	tests := []struct {
		name     string
		dose     domain.Dose
		weight   float64
		maxMg    float64
		expected float64
		err      error
	}{
		{"grams", domain.Dose{Amount: 2, Unit: domain.UnitGram}, 0, 0, 2000, nil},
		{"milligrams", domain.Dose{Amount: 500, Unit: domain.UnitMilligram}, 0, 0, 500, nil},
		{"mg per kg", domain.Dose{Amount: 30, Unit: domain.UnitMilligramPerKg}, 50, 0, 1500, nil},
		{"mg per kg capped", domain.Dose{Amount: 30, Unit: domain.UnitMilligramPerKg}, 90, 2000, 2000, nil},
		{"g per kg", domain.Dose{Amount: 0.015, Unit: domain.UnitGramPerKg}, 60, 0, 900, nil},
		{"weight missing", domain.Dose{Amount: 30, Unit: domain.UnitMilligramPerKg}, 0, 2000, 0, domain.ErrWeightRequired},
		{"unknown unit", domain.Dose{Amount: 1, Unit: "UI"}, 0, 0, 0, domain.ErrUnknownDoseUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mg, err := ToMilligrams(tt.dose, tt.weight, tt.maxMg)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, mg, 1e-9)
		})
	}
}

func TestAdministeredMilligrams(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
		ok       bool
	}{
		{"brand with grams", "KEFAZOL 2G", 2000, true},
		{"milligrams", "500MG", 500, true},
		{"decimal comma", "1,5G", 1500, true},
		{"lower case", "cefazolina 2g ev", 2000, true},
		{"combined regimen takes largest", "Cefazolina 2g + Metronidazol 500mg", 2000, true},
		{"gramas", "2 GRAMAS", 2000, true},
		{"number glued to letters", "VITAMINA B12G", 0, false},
		{"no dose", "KEFAZOL", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mg, ok := AdministeredMilligrams(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, mg, 1e-9)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"09:15", "09:15"},
		{"9:15", "09:15"},
		{"0915", "09:15"},
		{"10:00:00", "10:00"},
		{" 23:59 ", "23:59"},
		{"9h15", "09:15"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := ParseClock(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.String())
		})
	}
}

func TestParseClock_Errors(t *testing.T) {
	_, err := ParseClock("")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, raw := range []string{"25:00", "12:60", "abc", "9"} {
		_, err := ParseClock(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidClockTime, raw)
	}
}

func TestMinutesBetween(t *testing.T) {
	admin, err := ParseClock("09:15")
	require.NoError(t, err)
	incision, err := ParseClock("10:00")
	require.NoError(t, err)

	assert.Equal(t, 45, MinutesBetween(admin, incision))
	assert.Equal(t, -45, MinutesBetween(incision, admin))
	assert.Equal(t, 9, admin.Hour())
	assert.Equal(t, 15, admin.Minute())
}
