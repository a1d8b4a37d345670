// Package confidence rates the reliability of automatically extracted lab
// parameters. Scores are deterministic heuristics over field completeness,
// value plausibility against the reference range, and reference range
// quality. Malformed input degrades the affected component and records an
// issue string; scoring never fails.
package confidence

import (
	"strconv"
	"strings"

	"github.com/medreports/backend/internal/storage/models"
)

const (
	maxCompletenessScore   = 40.0
	maxValueScore          = 30.0
	maxReferenceRangeScore = 20.0
	maxConfidence          = 100.0
)

// Breakdown is the per-parameter score: confidence is the sum of the three
// components, capped at 100.
type Breakdown struct {
	ParameterName        string   `json:"parameterName"`
	Confidence           float64  `json:"confidence"`
	CompletenessScore    float64  `json:"completenessScore"`
	ValueValidationScore float64  `json:"valueValidationScore"`
	ReferenceRangeScore  float64  `json:"referenceRangeScore"`
	Issues               []string `json:"issues"`
}

type ReportConfidence struct {
	OverallConfidence    float64     `json:"overallConfidence"`
	ParameterConfidences []Breakdown `json:"parameterConfidences"`
}

// Scorer computes confidence scores. Weights optionally weighs the report
// aggregate per parameter name; an empty map gives the unweighted mean.
type Scorer struct {
	weights map[string]float64
}

func NewScorer(weights map[string]float64) *Scorer {
	return &Scorer{weights: weights}
}

func (s *Scorer) Score(param models.ExtractedParameter) Breakdown {
	b := Breakdown{
		ParameterName: param.Name,
		Issues:        []string{},
	}

	present := 0
	if param.Name != "" {
		present++
	}
	if param.Value != "" {
		present++
	}
	if param.Unit != "" {
		present++
	}
	if param.ReferenceRange != "" {
		present++
	}
	b.CompletenessScore = float64(present) / 4.0 * maxCompletenessScore

	b.ValueValidationScore, b.Issues = scoreValue(param, b.Issues)
	b.ReferenceRangeScore, b.Issues = scoreReferenceRange(param.ReferenceRange, b.Issues)

	b.Confidence = b.CompletenessScore + b.ValueValidationScore + b.ReferenceRangeScore
	if b.Confidence > maxConfidence {
		b.Confidence = maxConfidence
	}

	return b
}

// ScoreReport aggregates per-parameter confidences into the report score.
// An empty parameter set yields 0, never NaN.
func (s *Scorer) ScoreReport(params []models.ExtractedParameter) ReportConfidence {
	result := ReportConfidence{
		ParameterConfidences: make([]Breakdown, 0, len(params)),
	}

	var sum, totalWeight float64
	for _, p := range params {
		b := s.Score(p)
		result.ParameterConfidences = append(result.ParameterConfidences, b)

		w := 1.0
		if len(s.weights) > 0 {
			if custom, ok := s.weights[b.ParameterName]; ok && custom > 0 {
				w = custom
			}
		}
		sum += b.Confidence * w
		totalWeight += w
	}

	if totalWeight > 0 {
		result.OverallConfidence = sum / totalWeight
	}

	return result
}

func scoreValue(param models.ExtractedParameter, issues []string) (float64, []string) {
	if param.Value == "" || param.ReferenceRange == "" {
		return 0, append(issues, "Missing value or reference range")
	}

	low, high, ok := parseReferenceRange(param.ReferenceRange)
	if !ok {
		return 15, append(issues, "Unable to parse reference range")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(param.Value), 64)
	if err != nil {
		return 0, append(issues, "Invalid numeric value")
	}

	if value >= low && value <= high {
		return maxValueScore, issues
	}
	return 15, append(issues, "Value outside reference range")
}

func scoreReferenceRange(rng string, issues []string) (float64, []string) {
	if rng == "" {
		return 0, append(issues, "No reference range provided")
	}

	if _, _, ok := parseReferenceRange(rng); !ok {
		return 10, append(issues, "Non-numeric reference range")
	}
	return maxReferenceRangeScore, issues
}

// parseReferenceRange parses a "<low>-<high>" range where both halves are
// numeric.
func parseReferenceRange(rng string) (low, high float64, ok bool) {
	parts := strings.SplitN(rng, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	low, errLow := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	high, errHigh := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLow != nil || errHigh != nil {
		return 0, 0, false
	}
	return low, high, true
}
