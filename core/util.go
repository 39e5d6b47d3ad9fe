package core

import (
	"math"
	"strconv"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round2 rounds x half away from zero to 2 decimal places.
// The decimal point is shifted on the shortest decimal representation of x,
// so 1.005 rounds to 1.01 and not to 1.00 (1.005*100 == 100.49999999999999).
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	s := strconv.FormatFloat(x, 'e', -1, 64)
	i := strings.IndexByte(s, 'e')
	exp, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return math.Round(x*100) / 100
	}
	shifted, err := strconv.ParseFloat(s[:i]+"e"+strconv.Itoa(exp+2), 64)
	if err != nil {
		return math.Round(x*100) / 100
	}
	return math.Round(shifted) / 100
}
