// Package ingestion reshapes raw nested extraction output into the flat
// per-test rows the search engine and confidence scorer operate on.
package ingestion

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medreports/backend/internal/storage/models"
	"github.com/medreports/backend/pkg/logger"
)

// Flatten converts a raw extraction object into extracted parameters.
// Two shapes are accepted, matching what the extraction pipeline emits:
//
//	{"Haemoglobin": {"Value": "13", "Unit": "g/dL", "Reference Range": "13-17"}}
//	{"CBC (Complete Blood Count)": {"Haemoglobin": {"Value": "13", ...}}}
//
// Entries without a Value key are skipped. Flatten never fails; unusable
// input just yields fewer rows.
func Flatten(extracted map[string]interface{}) []models.ExtractedParameter {
	params := make([]models.ExtractedParameter, 0)

	for key, entry := range extracted {
		details, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		if _, hasValue := details["Value"]; hasValue {
			params = append(params, newParameter("", key, details))
			continue
		}

		// Nested category: each child with a Value key is one test.
		for name, sub := range details {
			subDetails, ok := sub.(map[string]interface{})
			if !ok {
				continue
			}
			if _, hasValue := subDetails["Value"]; hasValue {
				params = append(params, newParameter(key, name, subDetails))
			}
		}
	}

	return params
}

// ToRecords turns extracted parameters into per-test storage rows. Values
// that do not parse as numbers become null, never an error — extraction is
// noisy by nature.
func ToRecords(reportID, userID, date string, params []models.ExtractedParameter) []models.ParameterRecord {
	records := make([]models.ParameterRecord, 0, len(params))

	for _, p := range params {
		record := models.ParameterRecord{
			ReportID:       reportID,
			UserID:         userID,
			Category:       p.Category,
			TestName:       p.Name,
			Unit:           p.Unit,
			ReferenceRange: p.ReferenceRange,
			Date:           date,
		}

		if p.Value != "" {
			if v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64); err == nil {
				record.Value = &v
			} else {
				logger.Debug("Non-numeric extracted value stored as null",
					zap.String("test", p.Name),
					zap.String("value", p.Value),
				)
			}
		}

		records = append(records, record)
	}

	return records
}

func newParameter(category, name string, details map[string]interface{}) models.ExtractedParameter {
	return models.ExtractedParameter{
		Category:       category,
		Name:           name,
		Value:          stringField(details, "Value"),
		Unit:           stringField(details, "Unit"),
		ReferenceRange: stringField(details, "Reference Range"),
	}
}

func stringField(details map[string]interface{}, key string) string {
	switch v := details[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
