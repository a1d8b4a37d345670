// Package search compiles a canonical filter into storage predicates,
// executes it over flattened parameter records, and enriches matches with
// their parent report metadata.
package search

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/internal/nlquery"
	"github.com/medreports/backend/internal/storage/models"
	"github.com/medreports/backend/pkg/logger"
)

// Store is the read-only storage dependency. Report resolution is a single
// multi-key fetch, not one roundtrip per id.
type Store interface {
	FindParameters(ctx context.Context, pred models.ParameterPredicate) ([]models.ParameterRecord, error)
	GetReportsByIDs(ctx context.Context, ids []string) ([]models.ReportSummary, error)
}

// ResultRow is one matched parameter merged with its parent report's
// metadata. FileName is nil when the parent report is missing.
type ResultRow struct {
	ReportID       string   `json:"reportId"`
	ReportDate     string   `json:"reportDate"`
	FileName       *string  `json:"fileName"`
	TestName       string   `json:"testName"`
	Value          *float64 `json:"value"`
	Unit           string   `json:"unit"`
	ReferenceRange string   `json:"referenceRange"`
	Category       string   `json:"category"`
	Date           string   `json:"date"`
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

var comparators = map[string]bool{"=": true, "<": true, ">": true, "<=": true, ">=": true}

// Search executes the filter for one user. Each call is an independent,
// stateless unit of work: compile the predicate, fetch matching parameter
// rows, resolve their reports in one batch, merge. Dangling report
// references are logged and tolerated — the row is still returned with the
// record's own date and a nil file name.
func (e *Engine) Search(ctx context.Context, userID string, filter *nlquery.Filter) ([]ResultRow, error) {
	pred := models.ParameterPredicate{UserID: userID}

	if filter.DateRange != nil {
		pred.StartDate = filter.DateRange.StartDate
		pred.EndDate = filter.DateRange.EndDate
	}

	if filter.Parameter != "" {
		if filter.UnrecognizedParameter {
			pred.TestNamePattern = SafePattern(filter.Parameter)
		} else {
			pred.TestName = filter.Parameter
		}
	}

	if comparators[filter.Operator] && filter.Value != "" {
		value, err := strconv.ParseFloat(strings.TrimSpace(filter.Value), 64)
		if err != nil {
			// Mirrors a NaN comparison: the constraint exists but matches
			// nothing.
			logger.Warn("Non-numeric comparison value, query matches nothing",
				zap.String("value", filter.Value),
				zap.String("operator", filter.Operator),
			)
			return []ResultRow{}, nil
		}
		pred.ValueOp = filter.Operator
		pred.Value = value
		pred.HasValue = true
	}

	matched, err := e.store.FindParameters(ctx, pred)
	if err != nil {
		return nil, err
	}

	logger.Debug("Parameter search executed",
		zap.String("user_id", userID),
		zap.Int("matches", len(matched)),
	)

	reportMap, err := e.resolveReports(ctx, matched)
	if err != nil {
		return nil, err
	}

	rows := make([]ResultRow, 0, len(matched))
	for _, p := range matched {
		row := ResultRow{
			ReportID:       p.ReportID,
			ReportDate:     p.Date,
			TestName:       p.TestName,
			Value:          p.Value,
			Unit:           p.Unit,
			ReferenceRange: p.ReferenceRange,
			Category:       p.Category,
			Date:           p.Date,
		}

		if report, ok := reportMap[p.ReportID]; ok {
			if report.Date != "" {
				row.ReportDate = report.Date
			}
			fileName := report.FileName
			row.FileName = &fileName
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// resolveReports batches the distinct report ids of the matched rows into a
// single multi-key lookup.
func (e *Engine) resolveReports(ctx context.Context, matched []models.ParameterRecord) (map[string]models.ReportSummary, error) {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	skipped := 0

	for _, p := range matched {
		id := strings.TrimSpace(p.ReportID)
		if id == "" {
			skipped++
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if skipped > 0 {
		logger.Warn("Skipped parameter rows with malformed report ids", zap.Int("count", skipped))
	}

	reportMap := make(map[string]models.ReportSummary, len(ids))
	if len(ids) == 0 {
		return reportMap, nil
	}

	reports, err := e.store.GetReportsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range reports {
		reportMap[r.ID] = r
	}

	if dangling := len(ids) - len(reports); dangling > 0 {
		metrics.DanglingReportRefs.Add(float64(dangling))
		logger.Warn("Parameter rows reference missing reports",
			zap.Int("count", dangling),
		)
	}

	return reportMap, nil
}
