package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medreports/backend/internal/storage/models"
)

func TestFlattenFlatShape(t *testing.T) {
	extracted := map[string]interface{}{
		"Haemoglobin": map[string]interface{}{
			"Value":           "13.2",
			"Unit":            "g/dL",
			"Reference Range": "13.5-17.5",
		},
	}

	params := Flatten(extracted)

	require.Len(t, params, 1)
	assert.Equal(t, models.ExtractedParameter{
		Name:           "Haemoglobin",
		Value:          "13.2",
		Unit:           "g/dL",
		ReferenceRange: "13.5-17.5",
	}, params[0])
}

func TestFlattenNestedCategories(t *testing.T) {
	extracted := map[string]interface{}{
		"CBC (Complete Blood Count)": map[string]interface{}{
			"Haemoglobin": map[string]interface{}{
				"Value": "13.2",
				"Unit":  "g/dL",
			},
			"Platelet Count": map[string]interface{}{
				"Value": 250.0,
				"Unit":  "10^3/uL",
			},
		},
	}

	params := Flatten(extracted)

	require.Len(t, params, 2)
	for _, p := range params {
		assert.Equal(t, "CBC (Complete Blood Count)", p.Category)
		assert.NotEmpty(t, p.Value)
	}
}

func TestFlattenSkipsUnusableEntries(t *testing.T) {
	extracted := map[string]interface{}{
		"PatientName": "John Doe",                                     // scalar, not a parameter
		"Notes":       map[string]interface{}{"Text": "see attached"}, // no Value key anywhere
		"Haemoglobin": map[string]interface{}{"Value": "14"},
	}

	params := Flatten(extracted)

	require.Len(t, params, 1)
	assert.Equal(t, "Haemoglobin", params[0].Name)
}

func TestFlattenEmptyInput(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.Empty(t, Flatten(map[string]interface{}{}))
}

func TestToRecords(t *testing.T) {
	params := []models.ExtractedParameter{
		{Category: "CBC (Complete Blood Count)", Name: "Haemoglobin", Value: "13.2", Unit: "g/dL", ReferenceRange: "13.5-17.5"},
		{Name: "ESR", Value: "raised"},
		{Name: "TSH"},
	}

	records := ToRecords("report-1", "user-1", "2024-10-05", params)

	require.Len(t, records, 3)

	assert.Equal(t, "report-1", records[0].ReportID)
	assert.Equal(t, "user-1", records[0].UserID)
	assert.Equal(t, "2024-10-05", records[0].Date)
	assert.Equal(t, "CBC (Complete Blood Count)", records[0].Category)
	require.NotNil(t, records[0].Value)
	assert.Equal(t, 13.2, *records[0].Value)

	assert.Nil(t, records[1].Value, "non-numeric value stored as null")
	assert.Nil(t, records[2].Value, "missing value stored as null")
}
