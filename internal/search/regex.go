package search

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/medreports/backend/pkg/logger"
)

// SafePattern builds a case-insensitive substring pattern from an untrusted
// fallback term. Empty or uncompilable input yields "" — no constraint,
// never an error. Metacharacters are quoted so the term matches literally.
func SafePattern(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		logger.Warn("Empty fallback term, skipping test name constraint")
		return ""
	}

	pattern := "(?i)" + regexp.QuoteMeta(trimmed)
	if _, err := regexp.Compile(pattern); err != nil {
		logger.Warn("Fallback pattern does not compile, skipping test name constraint",
			zap.String("input", input),
			zap.Error(err),
		)
		return ""
	}

	return pattern
}
