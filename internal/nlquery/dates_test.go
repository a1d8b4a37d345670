package nlquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPastRange(t *testing.T) {
	now := time.Date(2024, time.October, 15, 10, 0, 0, 0, time.UTC)

	r := PastRange(now, 6)

	assert.Equal(t, "2024-04-15", r.StartDate)
	assert.Equal(t, "2024-10-15", r.EndDate)
}

func TestPastRangeAcrossYearBoundary(t *testing.T) {
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	r := PastRange(now, 3)

	assert.Equal(t, "2023-11-01", r.StartDate)
	assert.Equal(t, "2024-02-01", r.EndDate)
}

func TestResolvePhrase(t *testing.T) {
	tests := []struct {
		name      string
		phrase    string
		wantStart string
		wantEnd   string
	}{
		{name: "bare year", phrase: "2024", wantStart: "2024-01-01", wantEnd: "2024-12-31"},
		{name: "full month name", phrase: "October 2024", wantStart: "2024-10-01", wantEnd: "2024-10-31"},
		{name: "abbreviated month name", phrase: "Oct 2024", wantStart: "2024-10-01", wantEnd: "2024-10-31"},
		{name: "february leap year", phrase: "February 2024", wantStart: "2024-02-01", wantEnd: "2024-02-29"},
		{name: "thirty day month", phrase: "April 2023", wantStart: "2023-04-01", wantEnd: "2023-04-30"},
		{name: "surrounding whitespace", phrase: "  June 2022  ", wantStart: "2022-06-01", wantEnd: "2022-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResolvePhrase(tt.phrase)
			require.NotNil(t, r)
			assert.Equal(t, tt.wantStart, r.StartDate)
			assert.Equal(t, tt.wantEnd, r.EndDate)
		})
	}
}

func TestResolvePhraseUnparseable(t *testing.T) {
	for _, phrase := range []string{"", "   ", "not-a-date", "October", "13 2024", "2024-10"} {
		assert.Nil(t, ResolvePhrase(phrase), "phrase %q should not resolve", phrase)
	}
}

func TestRangeForOperator(t *testing.T) {
	base := DateRange{StartDate: "2024-10-01", EndDate: "2024-10-31"}

	tests := []struct {
		operator string
		want     DateRange
	}{
		{operator: "<", want: DateRange{EndDate: "2024-10-01"}},
		{operator: "<=", want: DateRange{EndDate: "2024-10-01"}},
		{operator: ">", want: DateRange{StartDate: "2024-10-31"}},
		{operator: ">=", want: DateRange{StartDate: "2024-10-31"}},
		{operator: "=", want: base},
		{operator: "", want: base},
	}

	for _, tt := range tests {
		t.Run("operator "+tt.operator, func(t *testing.T) {
			assert.Equal(t, tt.want, RangeForOperator(base, tt.operator))
		})
	}
}
