package nlquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medreports/backend/internal/synonyms"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) TranslateSearchQuery(ctx context.Context, queryText string) (string, error) {
	return s.reply, s.err
}

func newTestTranslator(t *testing.T, reply string) *Translator {
	t.Helper()

	table, err := synonyms.Load()
	require.NoError(t, err)

	tr := NewTranslator(&stubCompleter{reply: reply}, table)
	tr.now = func() time.Time {
		return time.Date(2024, time.October, 15, 12, 0, 0, 0, time.UTC)
	}
	return tr
}

func TestTranslateNumericComparison(t *testing.T) {
	tr := newTestTranslator(t, `{"parameter": "hgb", "operator": "<", "value": 12}`)

	filter, err := tr.Translate(context.Background(), "haemoglobin less than 12")
	require.NoError(t, err)

	assert.Equal(t, "Haemoglobin", filter.Parameter)
	assert.Equal(t, "<", filter.Operator)
	assert.Equal(t, "12", filter.Value)
	assert.False(t, filter.UnrecognizedParameter)
	assert.Nil(t, filter.DateRange)
}

func TestTranslateTimeframeMonths(t *testing.T) {
	tr := newTestTranslator(t, `{"parameter": "TSH", "timeframeMonths": 6}`)

	filter, err := tr.Translate(context.Background(), "thyroid results from the last 6 months")
	require.NoError(t, err)

	require.NotNil(t, filter.DateRange)
	assert.Equal(t, "2024-04-15", filter.DateRange.StartDate)
	assert.Equal(t, "2024-10-15", filter.DateRange.EndDate)
}

func TestTranslateTimeframeMonthsAsString(t *testing.T) {
	tr := newTestTranslator(t, `{"parameter": "TSH", "timeframeMonths": "3"}`)

	filter, err := tr.Translate(context.Background(), "thyroid results from the last 3 months")
	require.NoError(t, err)

	require.NotNil(t, filter.DateRange)
	assert.Equal(t, "2024-07-15", filter.DateRange.StartDate)
	assert.Equal(t, "2024-10-15", filter.DateRange.EndDate)
}

func TestTranslateMonthYearValueBecomesDateRange(t *testing.T) {
	tr := newTestTranslator(t, `{"parameter": "hemoglobin", "value": "October 2024"}`)

	filter, err := tr.Translate(context.Background(), "haemoglobin results in October 2024")
	require.NoError(t, err)

	assert.Equal(t, "Haemoglobin", filter.Parameter)
	assert.Empty(t, filter.Value, "date phrase must not survive as a literal value")
	require.NotNil(t, filter.DateRange)
	assert.Equal(t, "2024-10-01", filter.DateRange.StartDate)
	assert.Equal(t, "2024-10-31", filter.DateRange.EndDate)
}

func TestTranslateDatePhraseWithComparisonOperator(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantFrom string
		wantTo   string
	}{
		{
			name:     "before a year",
			reply:    `{"parameter": "hgb", "operator": "<", "value": "2023"}`,
			wantFrom: "",
			wantTo:   "2023-01-01",
		},
		{
			name:     "after a month",
			reply:    `{"parameter": "hgb", "operator": ">", "value": "March 2024"}`,
			wantFrom: "2024-03-31",
			wantTo:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranslator(t, tt.reply)

			filter, err := tr.Translate(context.Background(), "query")
			require.NoError(t, err)

			require.NotNil(t, filter.DateRange)
			assert.Equal(t, tt.wantFrom, filter.DateRange.StartDate)
			assert.Equal(t, tt.wantTo, filter.DateRange.EndDate)
			assert.Empty(t, filter.Value)
		})
	}
}

func TestTranslateUninterpretableDatePhraseKeepsValue(t *testing.T) {
	tr := newTestTranslator(t, `{"parameter": "hgb", "operator": "=", "value": "sometime last spring"}`)

	filter, err := tr.Translate(context.Background(), "haemoglobin sometime last spring")
	require.NoError(t, err)

	assert.Equal(t, "sometime last spring", filter.Value)
	assert.Nil(t, filter.DateRange)
}

func TestTranslateUnrecognizedParameter(t *testing.T) {
	tr := newTestTranslator(t, `{"parameter": "Quasimoglobin", "operator": ">", "value": 5}`)

	filter, err := tr.Translate(context.Background(), "quasimoglobin above 5")
	require.NoError(t, err)

	assert.Equal(t, "Quasimoglobin", filter.Parameter)
	assert.True(t, filter.UnrecognizedParameter)
}

func TestTranslateCategoryNormalization(t *testing.T) {
	tr := newTestTranslator(t, `{"category": "lipid profile"}`)

	filter, err := tr.Translate(context.Background(), "show my lipid panel results")
	require.NoError(t, err)

	assert.Equal(t, "Lipid Profile", filter.Category)
	assert.False(t, filter.UnrecognizedParameter)
}

func TestTranslateCodeFencedReply(t *testing.T) {
	reply := "```json\n{\"parameter\": \"hgb\", \"operator\": \"<\", \"value\": 12}\n```"
	tr := newTestTranslator(t, reply)

	filter, err := tr.Translate(context.Background(), "haemoglobin below 12")
	require.NoError(t, err)

	assert.Equal(t, "Haemoglobin", filter.Parameter)
	assert.Equal(t, "12", filter.Value)
}

func TestTranslateInvalidModelReplies(t *testing.T) {
	for _, reply := range []string{"", "   ", "I cannot help with that.", "{not json"} {
		tr := newTestTranslator(t, reply)

		_, err := tr.Translate(context.Background(), "haemoglobin below 12")
		assert.ErrorIs(t, err, ErrInvalidModelResponse, "reply %q", reply)
	}
}

func TestTranslatePropagatesCompleterError(t *testing.T) {
	table, err := synonyms.Load()
	require.NoError(t, err)

	llmErr := errors.New("upstream unavailable")
	tr := NewTranslator(&stubCompleter{err: llmErr}, table)

	_, err = tr.Translate(context.Background(), "haemoglobin below 12")
	assert.ErrorIs(t, err, llmErr)
}
