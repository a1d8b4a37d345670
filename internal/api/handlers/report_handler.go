package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/ingestion"
	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/internal/storage/models"
	"github.com/medreports/backend/internal/storage/sqlite"
	"github.com/medreports/backend/pkg/logger"
)

type ReportHandler struct {
	db *sqlite.Client
}

func NewReportHandler(db *sqlite.Client) *ReportHandler {
	return &ReportHandler{db: db}
}

// IngestReport accepts a raw extraction payload from the upstream pipeline,
// flattens it into per-test rows, and persists both the report and the
// rows. Upload and OCR happen elsewhere; this is the structured hand-off.
func (h *ReportHandler) IngestReport(c *fiber.Ctx) error {
	var req struct {
		UserID              string                 `json:"userId"`
		FileName            string                 `json:"fileName"`
		Date                string                 `json:"date"`
		ExtractedParameters map[string]interface{} `json:"extractedParameters"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse report payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	params := ingestion.Flatten(req.ExtractedParameters)
	if len(params) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No valid parameters found in extraction",
		})
	}

	report := &models.Report{
		ID:                  uuid.New().String(),
		UserID:              req.UserID,
		FileName:            req.FileName,
		Date:                req.Date,
		ExtractedParameters: params,
		CreatedAt:           time.Now(),
	}

	if err := h.db.InsertReport(c.Context(), report); err != nil {
		logger.Error("Failed to insert report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store report",
		})
	}

	records := ingestion.ToRecords(report.ID, req.UserID, req.Date, params)
	if err := h.db.InsertParameters(c.Context(), records); err != nil {
		logger.Error("Failed to insert parameter rows", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store report parameters",
		})
	}

	metrics.ReportsIngested.Inc()

	logger.Info("Report ingested",
		zap.String("report_id", report.ID),
		zap.String("user_id", req.UserID),
		zap.Int("parameters", len(records)),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reportId":       report.ID,
		"parameterCount": len(records),
	})
}
