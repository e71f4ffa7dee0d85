package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flashflow/flashflow/pkg/dispatch"
)

func parseLimit(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseOffset(value string) int {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func formatTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.UTC().Format(time.RFC3339Nano)
	return &formatted
}

// writeEngineError maps the engine's error taxonomy onto HTTP. Business-rule
// rejections carry their code so clients can produce user-facing messages.
func writeEngineError(c *gin.Context, err error) {
	var engineErr *dispatch.Error
	if !errors.As(err, &engineErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch engineErr.Kind {
	case dispatch.KindValidation:
		status = http.StatusBadRequest
		if engineErr.Code == dispatch.CodeVideoNotFound {
			status = http.StatusNotFound
		}
	case dispatch.KindAuthorization:
		status = http.StatusConflict
		if engineErr.Code == dispatch.CodeForbidden {
			status = http.StatusForbidden
		}
	case dispatch.KindState:
		status = http.StatusUnprocessableEntity
	case dispatch.KindUpstream:
		status = http.StatusPaymentRequired
	}

	c.JSON(status, gin.H{"error": engineErr.Message, "code": engineErr.Code})
}
