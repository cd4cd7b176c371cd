package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	currencyMarkers  = regexp.MustCompile(`(?i)€|\beuro\b|\beur\b`)
	thousandsGrouped = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// NormalizeAmount converts an Italian-formatted amount such as
// "€ 1.234.567,89" to 1234567.89. The second result is false when the input
// is not a finite, non-negative number.
func NormalizeAmount(raw string) (float64, bool) {
	s := currencyMarkers.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, ".,;:")
	if s == "" {
		return 0, false
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	case hasDot && thousandsGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
