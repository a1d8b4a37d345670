package nlquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/internal/synonyms"
	"github.com/medreports/backend/pkg/logger"
)

// Completer is the language-model dependency: one prompt in, the raw reply
// out. Satisfied by llm.Client.
type Completer interface {
	TranslateSearchQuery(ctx context.Context, queryText string) (string, error)
}

type Translator struct {
	llm Completer
	syn *synonyms.Table
	now func() time.Time
}

func NewTranslator(llm Completer, syn *synonyms.Table) *Translator {
	return &Translator{
		llm: llm,
		syn: syn,
		now: time.Now,
	}
}

// modelFilter is the declared field set of the model reply. Parameter,
// operator and category must be strings; value and timeframeMonths arrive
// as either numbers or strings and are coerced here, at the boundary.
type modelFilter struct {
	Parameter       string      `json:"parameter"`
	Operator        string      `json:"operator"`
	Value           interface{} `json:"value"`
	Category        string      `json:"category"`
	TimeframeMonths interface{} `json:"timeframeMonths"`
}

// Translate turns free query text into a canonical filter. The LLM call is
// the only suspension point; an empty or non-JSON reply is fatal for the
// request (ErrInvalidModelResponse), while an uninterpretable date phrase
// only degrades: the raw value is kept and a diagnostic logged.
func (t *Translator) Translate(ctx context.Context, queryText string) (*Filter, error) {
	raw, err := t.llm.TranslateSearchQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	content := stripCodeFence(strings.TrimSpace(raw))
	if content == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrInvalidModelResponse)
	}

	var mf modelFilter
	if err := json.Unmarshal([]byte(content), &mf); err != nil {
		logger.Warn("Model reply is not valid filter JSON",
			zap.String("query", queryText),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelResponse, err)
	}

	filter := &Filter{
		Parameter: strings.TrimSpace(mf.Parameter),
		Category:  strings.TrimSpace(mf.Category),
		Operator:  strings.TrimSpace(mf.Operator),
		Value:     coerceValue(mf.Value),
	}

	// Date precedence: an explicit timeframe wins; otherwise a string value
	// that reads as a month/year phrase becomes the date range and is
	// removed so it is never also treated as a numeric comparison.
	if months, ok := positiveMonths(mf.TimeframeMonths); ok {
		r := PastRange(t.now(), months)
		filter.DateRange = &r
	} else if s, isString := mf.Value.(string); isString && s != "" {
		if phrase := ResolvePhrase(s); phrase != nil {
			r := RangeForOperator(*phrase, filter.Operator)
			filter.DateRange = &r
			filter.Value = ""
			logger.Debug("Interpreted date phrase from value",
				zap.String("phrase", s),
				zap.String("start", r.StartDate),
				zap.String("end", r.EndDate),
			)
		} else if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			logger.Warn("Could not interpret date phrase, keeping raw value",
				zap.String("value", s),
			)
		}
	}

	if filter.Parameter != "" {
		normalized, recognized := t.syn.Normalize(filter.Parameter, synonyms.KindParameter)
		filter.Parameter = normalized
		if !recognized {
			filter.UnrecognizedParameter = true
			metrics.UnrecognizedParameterTotal.Inc()
			logger.Debug("Unrecognized parameter, search will fall back to pattern match",
				zap.String("parameter", filter.Parameter),
			)
		}
	}

	if filter.Category != "" {
		// Unrecognized categories are kept as given; category matching is
		// advisory.
		normalized, _ := t.syn.Normalize(filter.Category, synonyms.KindCategory)
		filter.Category = normalized
	}

	return filter, nil
}

func coerceValue(v interface{}) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func positiveMonths(v interface{}) (int, bool) {
	switch value := v.(type) {
	case float64:
		months := int(value)
		return months, months > 0
	case string:
		months, err := strconv.Atoi(strings.TrimSpace(value))
		return months, err == nil && months > 0
	default:
		return 0, false
	}
}

// stripCodeFence unwraps a reply the model wrapped in markdown fences.
// Anything still non-JSON afterwards is an ErrInvalidModelResponse.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
