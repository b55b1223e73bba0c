package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Amounts are carried as int64 minor units. The external API and the
// redirect-confirmation gateway speak decimal major units; the
// merchant-terminal gateway speaks minor units natively.

var errBadAmount = errors.New("bad_amount")

// ParseAmount converts a decimal major-unit string ("500", "499.90") into
// minor units. At most two fraction digits are accepted.
func ParseAmount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "-") || strings.HasPrefix(value, "+") {
		return 0, errBadAmount
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" || len(frac) > 2 {
		return 0, errBadAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var minor int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, errBadAmount
		}
		minor = minor*10 + int64(r-'0')
		if minor < 0 {
			return 0, errBadAmount
		}
	}
	return minor, nil
}

// FormatAmount renders minor units as a two-decimal major-unit string.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
