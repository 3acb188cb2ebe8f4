// Package datetime provides date utility functions for eligibility rules.
package datetime

import (
	"time"

	"github.com/assetfin/quote-engine/pkg/constants"
)

// DateLayout is the format accepted for registration dates in application data.
const DateLayout = "2006-01-02"

// MustParseDate parses a date string in DateLayout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseDate(dateStr string) time.Time {
	t, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// MonthsBetween returns the number of whole months from the first date to the
// second, computed as (year2-year1)*12 + (month2-month1). Day-of-month is
// ignored: a date on the last day of a month counts the same as one on the
// first day of that month. Negative when second precedes first.
func MonthsBetween(first, second time.Time) int {
	return (second.Year()-first.Year())*constants.MonthsPerYear + int(second.Month()) - int(first.Month())
}

// YearsCeil converts a term in months to years, rounding any partial year up.
func YearsCeil(months int) int {
	return (months + constants.MonthsPerYear - 1) / constants.MonthsPerYear
}

// AssetAgeAtTermEnd returns the age in years an asset of the given build year
// will have reached when a loan of the given term matures, measured from the
// given current year.
func AssetAgeAtTermEnd(assetYear, currentYear, termMonths int) int {
	return currentYear - assetYear + YearsCeil(termMonths)
}
