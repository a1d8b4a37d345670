package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/internal/nlquery"
	"github.com/medreports/backend/internal/search"
	"github.com/medreports/backend/internal/storage/models"
	"github.com/medreports/backend/internal/storage/sqlite"
	"github.com/medreports/backend/pkg/logger"
)

type SearchHandler struct {
	translator *nlquery.Translator
	engine     *search.Engine
	db         *sqlite.Client
}

func NewSearchHandler(translator *nlquery.Translator, engine *search.Engine, db *sqlite.Client) *SearchHandler {
	return &SearchHandler{
		translator: translator,
		engine:     engine,
		db:         db,
	}
}

// HandleSearch runs the full pipeline: free text -> canonical filter ->
// enriched result rows.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req struct {
		UserID    string `json:"userId"`
		QueryText string `json:"queryText"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse search request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.QueryText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId and queryText are required",
		})
	}

	startTime := time.Now()

	filter, err := h.translator.Translate(c.Context(), req.QueryText)
	if err != nil {
		metrics.SearchTotal.WithLabelValues("translation_error").Inc()
		logger.Error("Query translation failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)

		if errors.Is(err, nlquery.ErrInvalidModelResponse) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Language model returned an unusable response",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Something went wrong during search",
		})
	}

	rows, err := h.engine.Search(c.Context(), req.UserID, filter)
	if err != nil {
		metrics.SearchTotal.WithLabelValues("error").Inc()
		logger.Error("Search execution failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Something went wrong during search",
		})
	}

	latency := time.Since(startTime)
	metrics.SearchDuration.Observe(latency.Seconds())
	metrics.SearchTotal.WithLabelValues("success").Inc()

	h.recordSearch(c, req.UserID, req.QueryText, filter, len(rows), latency)

	logger.Info("Search processed",
		zap.String("user_id", req.UserID),
		zap.String("query", req.QueryText),
		zap.Int("results", len(rows)),
		zap.Duration("latency", latency),
	)

	return c.JSON(fiber.Map{
		"success": true,
		"filter":  filter,
		"count":   len(rows),
		"reports": rows,
	})
}

// recordSearch keeps a history row for diagnostics. Failure to record never
// fails the search.
func (h *SearchHandler) recordSearch(c *fiber.Ctx, userID, queryText string, filter *nlquery.Filter, resultCount int, latency time.Duration) {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		filterJSON = []byte("{}")
	}

	record := &models.SearchRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		QueryText:   queryText,
		FilterJSON:  string(filterJSON),
		ResultCount: resultCount,
		LatencyMS:   int(latency.Milliseconds()),
		CreatedAt:   time.Now(),
	}

	if err := h.db.InsertSearchRecord(c.Context(), record); err != nil {
		logger.Warn("Failed to record search history", zap.Error(err))
	}
}

func (h *SearchHandler) GetSearchHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.db.GetSearchHistory(c.Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to get search history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get search history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":          r.ID,
			"queryText":   r.QueryText,
			"filter":      json.RawMessage(r.FilterJSON),
			"resultCount": r.ResultCount,
			"latencyMs":   r.LatencyMS,
			"createdAt":   r.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}
