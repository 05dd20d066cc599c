package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/service"
)

type Handler struct {
	Store      db.Repository
	Pipeline   *service.PipelineService
	Query      *service.QueryService
	Translator ai.Translator
	Presets    []analytics.Preset
	Validator  *validator.Validate
	Logger     zerolog.Logger
	AdminKey   string
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeStoreError maps storage failures onto the error envelope.
func writeStoreError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, db.ErrConnection):
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
	case errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
	default:
		writeError(c, http.StatusInternalServerError, "DB_ERROR", message, err.Error())
	}
}

func validateExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv"
}
