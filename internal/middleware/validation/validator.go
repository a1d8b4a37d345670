package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxQueryLength int
	Logger         *zap.Logger
}

// Middleware enforces the request contract of the search endpoint before
// any LLM spend: body must be JSON, queryText and userId must be present,
// and the query must fit the length cap.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 2000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || !strings.HasSuffix(c.Path(), "/search") {
			return c.Next()
		}

		var req map[string]interface{}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		queryText, ok := req["queryText"].(string)
		if !ok || strings.TrimSpace(queryText) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "queryText is required and must be a string",
			})
		}

		userID, ok := req["userId"].(string)
		if !ok || strings.TrimSpace(userID) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "userId is required and must be a string",
			})
		}

		if len(queryText) > cfg.MaxQueryLength {
			cfg.Logger.Warn("Oversized search query rejected",
				zap.String("user_id", userID),
				zap.Int("length", len(queryText)),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "queryText exceeds maximum length",
			})
		}

		return c.Next()
	}
}
