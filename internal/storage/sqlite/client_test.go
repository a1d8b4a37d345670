package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medreports/backend/internal/storage/models"
)

// A file-backed database per test: ":memory:" gives every pooled
// connection its own empty database.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func floatPtr(v float64) *float64 { return &v }

func seedParameters(t *testing.T, client *Client, records []models.ParameterRecord) {
	t.Helper()
	require.NoError(t, client.InsertParameters(context.Background(), records))
}

func TestInsertAndGetReport(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	report := &models.Report{
		ID:       "report-1",
		UserID:   "user-1",
		FileName: "cbc.pdf",
		Date:     "2024-10-05",
		ExtractedParameters: []models.ExtractedParameter{
			{Name: "Haemoglobin", Value: "13.2", Unit: "g/dL", ReferenceRange: "13.5-17.5"},
		},
		CreatedAt: time.Now(),
	}

	require.NoError(t, client.InsertReport(ctx, report))

	got, err := client.GetReport(ctx, "report-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "cbc.pdf", got.FileName)
	require.Len(t, got.ExtractedParameters, 1)
	assert.Equal(t, "Haemoglobin", got.ExtractedParameters[0].Name)
}

func TestGetReportMissing(t *testing.T) {
	client := newTestClient(t)

	got, err := client.GetReport(context.Background(), "no-such-report")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindParametersPredicates(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	seedParameters(t, client, []models.ParameterRecord{
		{ReportID: "r1", UserID: "user-1", TestName: "Haemoglobin", Value: floatPtr(11.2), Unit: "g/dL", Date: "2024-10-05"},
		{ReportID: "r2", UserID: "user-1", TestName: "Haemoglobin", Value: floatPtr(14.8), Unit: "g/dL", Date: "2024-06-01"},
		{ReportID: "r3", UserID: "user-1", TestName: "TSH", Value: floatPtr(2.1), Unit: "mIU/L", Date: "2024-10-05"},
		{ReportID: "r4", UserID: "user-2", TestName: "Haemoglobin", Value: floatPtr(9.9), Unit: "g/dL", Date: "2024-10-05"},
		{ReportID: "r5", UserID: "user-1", TestName: "Vitamin D Total", Value: nil, Date: "2024-09-01"},
	})

	tests := []struct {
		name        string
		pred        models.ParameterPredicate
		wantReports []string
	}{
		{
			name:        "user scoping",
			pred:        models.ParameterPredicate{UserID: "user-1", TestName: "Haemoglobin"},
			wantReports: []string{"r1", "r2"},
		},
		{
			name: "date range",
			pred: models.ParameterPredicate{
				UserID: "user-1", TestName: "Haemoglobin",
				StartDate: "2024-10-01", EndDate: "2024-10-31",
			},
			wantReports: []string{"r1"},
		},
		{
			name: "open-ended upper bound",
			pred: models.ParameterPredicate{
				UserID: "user-1", TestName: "Haemoglobin", EndDate: "2024-07-01",
			},
			wantReports: []string{"r2"},
		},
		{
			name: "value comparison",
			pred: models.ParameterPredicate{
				UserID: "user-1", TestName: "Haemoglobin",
				ValueOp: "<", Value: 12, HasValue: true,
			},
			wantReports: []string{"r1"},
		},
		{
			name: "value comparison skips null values",
			pred: models.ParameterPredicate{
				UserID: "user-1", ValueOp: ">=", Value: 0, HasValue: true,
			},
			wantReports: []string{"r1", "r3", "r2"},
		},
		{
			name:        "case-insensitive pattern fallback",
			pred:        models.ParameterPredicate{UserID: "user-1", TestNamePattern: "(?i)vitamin d"},
			wantReports: []string{"r5"},
		},
		{
			name:        "no matches",
			pred:        models.ParameterPredicate{UserID: "user-1", TestName: "Ferritin"},
			wantReports: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := client.FindParameters(ctx, tt.pred)
			require.NoError(t, err)

			gotReports := make([]string, 0, len(records))
			for _, r := range records {
				gotReports = append(gotReports, r.ReportID)
			}
			assert.Equal(t, tt.wantReports, gotReports)
		})
	}
}

func TestFindParametersOrdersByDateDescending(t *testing.T) {
	client := newTestClient(t)

	seedParameters(t, client, []models.ParameterRecord{
		{ReportID: "old", UserID: "user-1", TestName: "Haemoglobin", Date: "2023-01-01"},
		{ReportID: "new", UserID: "user-1", TestName: "Haemoglobin", Date: "2024-12-01"},
		{ReportID: "mid", UserID: "user-1", TestName: "Haemoglobin", Date: "2024-03-01"},
	})

	records, err := client.FindParameters(context.Background(), models.ParameterPredicate{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].ReportID)
	assert.Equal(t, "mid", records[1].ReportID)
	assert.Equal(t, "old", records[2].ReportID)
}

func TestGetReportsByIDs(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, client.InsertReport(ctx, &models.Report{
			ID:        id,
			UserID:    "user-1",
			FileName:  id + ".pdf",
			Date:      "2024-10-05",
			CreatedAt: time.Now(),
		}))
	}

	summaries, err := client.GetReportsByIDs(ctx, []string{"r1", "r2", "r-missing"})
	require.NoError(t, err)

	require.Len(t, summaries, 2, "missing ids are absent, not an error")

	byID := make(map[string]models.ReportSummary)
	for _, s := range summaries {
		byID[s.ID] = s
	}
	assert.Equal(t, "r1.pdf", byID["r1"].FileName)
	assert.Equal(t, "2024-10-05", byID["r2"].Date)
}

func TestGetReportsByIDsEmpty(t *testing.T) {
	client := newTestClient(t)

	summaries, err := client.GetReportsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestConfidenceScoresAreAppendOnly(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	base := time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)

	first := &models.ConfidenceScoreRecord{
		ReportID:          "r1",
		UserID:            "user-1",
		OverallConfidence: 62.5,
		BreakdownJSON:     `[{"parameterName":"Haemoglobin","confidence":62.5}]`,
		CreatedAt:         base,
	}
	second := &models.ConfidenceScoreRecord{
		ReportID:          "r1",
		UserID:            "user-1",
		OverallConfidence: 87.5,
		BreakdownJSON:     `[{"parameterName":"Haemoglobin","confidence":87.5}]`,
		CreatedAt:         base.Add(time.Hour),
	}

	require.NoError(t, client.InsertConfidenceScore(ctx, first))
	require.NoError(t, client.InsertConfidenceScore(ctx, second))

	latest, err := client.GetLatestConfidenceScore(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, latest)

	assert.Equal(t, 87.5, latest.OverallConfidence)
	assert.Equal(t, second.BreakdownJSON, latest.BreakdownJSON)
}

func TestGetLatestConfidenceScoreMissing(t *testing.T) {
	client := newTestClient(t)

	latest, err := client.GetLatestConfidenceScore(context.Background(), "no-such-report")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSearchHistoryRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	base := time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)

	for i, query := range []string{"haemoglobin below 12", "tsh last 6 months", "lipid profile 2023"} {
		require.NoError(t, client.InsertSearchRecord(ctx, &models.SearchRecord{
			ID:          "s" + string(rune('1'+i)),
			UserID:      "user-1",
			QueryText:   query,
			FilterJSON:  "{}",
			ResultCount: i,
			LatencyMS:   100 * (i + 1),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := client.GetSearchHistory(ctx, "user-1", 2)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "lipid profile 2023", records[0].QueryText, "most recent first")
	assert.Equal(t, "tsh last 6 months", records[1].QueryText)

	none, err := client.GetSearchHistory(ctx, "user-2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
