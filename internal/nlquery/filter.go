// Package nlquery translates free-text medical search queries into a
// canonical structured filter: one LLM call, strict JSON validation, then
// synonym normalization and date-phrase resolution.
package nlquery

import "errors"

// ErrInvalidModelResponse reports that the language model returned an empty
// or non-JSON reply. It is the only translation failure surfaced to the
// caller; everything else degrades into a partial filter.
var ErrInvalidModelResponse = errors.New("invalid model response")

// DateRange bounds a search by record date. An empty bound is open.
type DateRange struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Filter is the canonical search intent derived from free text. Absent
// fields mean "no constraint". Filters are transient: built per request,
// consumed by the search engine, never persisted as state (search history
// keeps a JSON snapshot for diagnostics only).
type Filter struct {
	Parameter string     `json:"parameter,omitempty"`
	Category  string     `json:"category,omitempty"`
	Operator  string     `json:"operator,omitempty"`
	Value     string     `json:"value,omitempty"`
	DateRange *DateRange `json:"dateRange,omitempty"`

	// UnrecognizedParameter marks a parameter the synonym table did not
	// resolve; the executor falls back to a substring match instead of
	// exact equality.
	UnrecognizedParameter bool `json:"unrecognizedParameter,omitempty"`
}
