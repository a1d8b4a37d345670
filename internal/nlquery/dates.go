package nlquery

import (
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var yearOnlyPattern = regexp.MustCompile(`^\d{4}$`)

var monthYearLayouts = []string{"January 2006", "Jan 2006"}

// PastRange returns the range covering the last monthsAgo months, ending
// today.
func PastRange(now time.Time, monthsAgo int) DateRange {
	return DateRange{
		StartDate: now.AddDate(0, -monthsAgo, 0).Format(dateLayout),
		EndDate:   now.Format(dateLayout),
	}
}

// ResolvePhrase interprets an absolute time expression: a bare year
// ("2023") spans Jan 1 to Dec 31, a month-year phrase ("October 2024")
// spans that calendar month. Anything else returns nil — the caller treats
// that as "could not interpret", not an error.
func ResolvePhrase(phrase string) *DateRange {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}

	if yearOnlyPattern.MatchString(phrase) {
		start := phrase + "-01-01"
		end := phrase + "-12-31"
		return &DateRange{StartDate: start, EndDate: end}
	}

	for _, layout := range monthYearLayouts {
		first, err := time.Parse(layout, phrase)
		if err != nil {
			continue
		}
		last := first.AddDate(0, 1, -1)
		return &DateRange{
			StartDate: first.Format(dateLayout),
			EndDate:   last.Format(dateLayout),
		}
	}

	return nil
}

// RangeForOperator applies the directional rule for date phrases: with a
// less-than operator the phrase is an upper bound, with a greater-than
// operator a lower bound, otherwise the phrase's own range stands.
func RangeForOperator(r DateRange, operator string) DateRange {
	switch operator {
	case "<", "<=":
		return DateRange{EndDate: r.StartDate}
	case ">", ">=":
		return DateRange{StartDate: r.EndDate}
	default:
		return r
	}
}
