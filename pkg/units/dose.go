// Package units parses dose and clock-time text found in protocol rules and
// surgery spreadsheets.
package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
)

var (
	// Protocol dose text: "2g", "1,5 g", "900mg", "30 mg/kg", "0.03 g / kg"
	protocolDosePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(mg\s*/\s*kg|g\s*/\s*kg|mg|gramas|grama|gr|g)\b`)

	// Bare number without a recognised unit
	numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	// Administered dose candidates, applied to upper-cased text
	administeredPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(MG|GRAMAS|GRAMA|GR|G)\b`)
)

// ParseDose extracts the first dose of a protocol dose text.
// Empty text returns domain.ErrNotFound; a number without a supported unit
// returns domain.ErrUnknownDoseUnit.
func ParseDose(raw string) (domain.Dose, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.Dose{}, domain.ErrNotFound
	}

	m := protocolDosePattern.FindStringSubmatch(text)
	if m == nil {
		if numberPattern.MatchString(text) {
			return domain.Dose{}, fmt.Errorf("%w: %q", domain.ErrUnknownDoseUnit, raw)
		}
		return domain.Dose{}, domain.ErrNotFound
	}

	amount, err := parseDecimal(m[1])
	if err != nil {
		return domain.Dose{}, fmt.Errorf("parse dose amount %q: %w", m[1], err)
	}

	unit, err := ParseUnit(m[2])
	if err != nil {
		return domain.Dose{}, err
	}

	return domain.Dose{Amount: amount, Unit: unit, Raw: raw}, nil
}

// ParseUnit maps unit text onto a DoseUnit.
func ParseUnit(text string) (domain.DoseUnit, error) {
	u := strings.ToLower(strings.Join(strings.Fields(text), ""))
	switch u {
	case "mg":
		return domain.UnitMilligram, nil
	case "g", "gr", "grama", "gramas":
		return domain.UnitGram, nil
	case "mg/kg":
		return domain.UnitMilligramPerKg, nil
	case "g/kg":
		return domain.UnitGramPerKg, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDoseUnit, text)
	}
}

// ToMilligrams converts a dose to an absolute amount in milligrams.
// Weight-based doses need a positive weight and are clipped to maxMg when
// maxMg is positive.
func ToMilligrams(d domain.Dose, weightKg, maxMg float64) (float64, error) {
	var mg float64
	switch d.Unit {
	case domain.UnitMilligram, domain.UnitMilligramPerKg:
		mg = d.Amount
	case domain.UnitGram, domain.UnitGramPerKg:
		mg = d.Amount * 1000
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownDoseUnit, d.Unit)
	}
	if !d.Unit.IsWeightBased() {
		return mg, nil
	}

	if weightKg <= 0 {
		return 0, domain.ErrWeightRequired
	}
	mg *= weightKg
	if maxMg > 0 {
		mg = math.Min(mg, maxMg)
	}
	return mg, nil
}

// AdministeredMilligrams extracts the administered dose from free text such as
// "KEFAZOL 2G" or "1,5g cefazolina". Combined regimens ("2g + 500mg") yield the
// largest candidate. ok is false when no dose is present.
func AdministeredMilligrams(text string) (mg float64, ok bool) {
	upper := strings.ReplaceAll(strings.ToUpper(text), ",", ".")

	for _, idx := range administeredPattern.FindAllStringSubmatchIndex(upper, -1) {
		// Reject numbers glued to a preceding letter or digit, e.g. "B12G".
		if idx[0] > 0 && isAlnum(upper[idx[0]-1]) {
			continue
		}
		amount, err := strconv.ParseFloat(upper[idx[2]:idx[3]], 64)
		if err != nil {
			continue
		}
		if upper[idx[4]:idx[5]] != "MG" {
			amount *= 1000
		}
		if !ok || amount > mg {
			mg = amount
			ok = true
		}
	}
	return mg, ok
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
