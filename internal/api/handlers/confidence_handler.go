package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/cache/redis"
	"github.com/medreports/backend/internal/confidence"
	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/internal/storage/models"
	"github.com/medreports/backend/internal/storage/sqlite"
	"github.com/medreports/backend/pkg/logger"
)

type scorePayload struct {
	ReportID          string                 `json:"reportId"`
	UserID            string                 `json:"userId"`
	OverallConfidence float64                `json:"overallConfidence"`
	ParameterScores   []confidence.Breakdown `json:"parameterConfidences"`
	CreatedAt         int64                  `json:"createdAt"`
}

type ConfidenceHandler struct {
	scorer *confidence.Scorer
	db     *sqlite.Client
	cache  *redis.Client // optional, nil when redis is disabled
}

func NewConfidenceHandler(scorer *confidence.Scorer, db *sqlite.Client, cache *redis.Client) *ConfidenceHandler {
	return &ConfidenceHandler{
		scorer: scorer,
		db:     db,
		cache:  cache,
	}
}

// GenerateScore scores a report's extracted parameters and persists the run
// as a new record; earlier scores stay untouched.
func (h *ConfidenceHandler) GenerateScore(c *fiber.Ctx) error {
	reportID := c.Params("reportId")

	report, err := h.db.GetReport(c.Context(), reportID)
	if err != nil {
		logger.Error("Failed to load report for scoring", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error generating confidence score",
		})
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	score := h.scorer.ScoreReport(report.ExtractedParameters)
	metrics.ConfidenceScore.Observe(score.OverallConfidence)

	breakdownJSON, err := json.Marshal(score.ParameterConfidences)
	if err != nil {
		logger.Error("Failed to marshal score breakdown", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error generating confidence score",
		})
	}

	now := time.Now()
	record := &models.ConfidenceScoreRecord{
		ReportID:          reportID,
		UserID:            report.UserID,
		OverallConfidence: score.OverallConfidence,
		BreakdownJSON:     string(breakdownJSON),
		CreatedAt:         now,
	}

	if err := h.db.InsertConfidenceScore(c.Context(), record); err != nil {
		logger.Error("Failed to persist confidence score", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error generating confidence score",
		})
	}

	payload := scorePayload{
		ReportID:          reportID,
		UserID:            report.UserID,
		OverallConfidence: score.OverallConfidence,
		ParameterScores:   score.ParameterConfidences,
		CreatedAt:         now.Unix(),
	}

	if h.cache != nil {
		if err := h.cache.SetConfidenceScore(c.Context(), reportID, payload); err != nil {
			logger.Warn("Failed to cache confidence score", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"message": "Confidence score generated successfully",
		"data":    payload,
	})
}

// GetScore returns the latest persisted score for a report, read through
// the cache when available.
func (h *ConfidenceHandler) GetScore(c *fiber.Ctx) error {
	reportID := c.Params("reportId")

	if h.cache != nil {
		var cached scorePayload
		found, err := h.cache.GetConfidenceScore(c.Context(), reportID, &cached)
		if err != nil {
			logger.Warn("Confidence cache read failed", zap.Error(err))
		} else if found {
			return c.JSON(fiber.Map{
				"message": "Confidence score retrieved successfully",
				"data":    cached,
			})
		}
	}

	record, err := h.db.GetLatestConfidenceScore(c.Context(), reportID)
	if err != nil {
		logger.Error("Failed to get confidence score", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error retrieving confidence score",
		})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No confidence score found for this report",
		})
	}

	var breakdowns []confidence.Breakdown
	if err := json.Unmarshal([]byte(record.BreakdownJSON), &breakdowns); err != nil {
		logger.Error("Failed to unmarshal stored breakdown", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error retrieving confidence score",
		})
	}

	payload := scorePayload{
		ReportID:          record.ReportID,
		UserID:            record.UserID,
		OverallConfidence: record.OverallConfidence,
		ParameterScores:   breakdowns,
		CreatedAt:         record.CreatedAt.Unix(),
	}

	if h.cache != nil {
		if err := h.cache.SetConfidenceScore(c.Context(), reportID, payload); err != nil {
			logger.Warn("Failed to cache confidence score", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"message": "Confidence score retrieved successfully",
		"data":    payload,
	})
}
