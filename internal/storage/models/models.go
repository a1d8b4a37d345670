package models

import "time"

// ExtractedParameter is one lab test result as produced by the upstream
// extraction process. Value is kept as the raw extracted text: extraction
// output is noisy and a non-numeric value is still scored, just penalized.
type ExtractedParameter struct {
	Category       string `json:"category,omitempty"`
	Name           string `json:"name"`
	Value          string `json:"value,omitempty"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"referenceRange,omitempty"`
}

// ParameterRecord is a flattened per-test row, one per test per report.
// Value is the numeric parse of the extracted value, nil when it did not
// parse. Date is the report date as YYYY-MM-DD.
type ParameterRecord struct {
	ID             int64
	ReportID       string
	UserID         string
	Category       string
	TestName       string
	Value          *float64
	Unit           string
	ReferenceRange string
	Date           string
}

// ParameterPredicate is the storage read contract for parameter lookups.
// Zero values mean "no constraint".
type ParameterPredicate struct {
	UserID          string
	StartDate       string // inclusive, YYYY-MM-DD
	EndDate         string // inclusive, YYYY-MM-DD
	TestName        string // exact match on canonical name
	TestNamePattern string // case-insensitive regexp, used instead of TestName
	ValueOp         string // one of = < > <= >=
	Value           float64
	HasValue        bool
}

type Report struct {
	ID                  string
	UserID              string
	FileName            string
	Date                string
	ExtractedParameters []ExtractedParameter
	CreatedAt           time.Time
}

// ReportSummary is the shape returned by the multi-key report lookup used
// to enrich search results.
type ReportSummary struct {
	ID       string
	Date     string
	FileName string
}

// ConfidenceScoreRecord is an append-only persisted scoring run. A re-score
// inserts a new record; existing records are never updated.
type ConfidenceScoreRecord struct {
	ID                int64
	ReportID          string
	UserID            string
	OverallConfidence float64
	BreakdownJSON     string
	CreatedAt         time.Time
}

type SearchRecord struct {
	ID          string
	UserID      string
	QueryText   string
	FilterJSON  string
	ResultCount int
	LatencyMS   int
	CreatedAt   time.Time
}
