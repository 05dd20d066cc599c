package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/importer"
	"github.com/freedom_case_2/fire/internal/models"
	"github.com/freedom_case_2/fire/internal/service"
)

type ImportResponse struct {
	Import importer.Summary   `json:"import"`
	Run    service.RunSummary `json:"run"`
}

// @Summary Import roster CSV data
// @Description Upload business units, managers and tickets CSV files. Any subset may be sent; loads are recomputed afterwards.
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param business_units formData file false "business_units.csv"
// @Param managers formData file false "managers.csv"
// @Param tickets formData file false "tickets.csv"
// @Success 200 {object} ImportResponse
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	var files importer.Files
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	open := func(field string) (io.Reader, bool) {
		fh, err := c.FormFile(field)
		if err != nil {
			return nil, true
		}
		if !validateExt(fh.Filename) {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", field+" must be a .csv file", nil)
			return nil, false
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot open "+field, err.Error())
			return nil, false
		}
		opened = append(opened, f)
		return f, true
	}

	var ok bool
	if files.BusinessUnits, ok = open("business_units"); !ok {
		return
	}
	if files.Managers, ok = open("managers"); !ok {
		return
	}
	if files.Tickets, ok = open("tickets"); !ok {
		return
	}
	if files.BusinessUnits == nil && files.Managers == nil && files.Tickets == nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "at least one of business_units, managers, tickets is required", nil)
		return
	}

	ctx := c.Request.Context()
	existing, err := h.Store.ListBusinessUnits(ctx)
	if err != nil {
		writeStoreError(c, err, "Failed to load business units")
		return
	}

	im := importer.Importer{Store: h.Store, Logger: h.Logger}
	summary, err := im.Import(ctx, files, existing)
	if err != nil {
		var perr *importer.ParseError
		if errors.As(err, &perr) {
			writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", perr.Errors)
			return
		}
		writeStoreError(c, err, "Failed to import roster")
		return
	}

	run, err := h.Pipeline.RecomputeLoads(ctx, service.RunKindImport)
	if err != nil {
		writeStoreError(c, err, "Failed to recompute loads")
		return
	}
	c.JSON(http.StatusOK, ImportResponse{Import: summary, Run: run})
}

// @Summary Ingest classifier results
// @Description Accepts a JSON array of rows, {"results": [...]}, a text/csv body, or a multipart "results" CSV file.
// @Tags results
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} service.RunSummary
// @Failure 400 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/results/ingest [post]
func (h *Handler) IngestResults(c *gin.Context) {
	rows, errs, err := readResultRows(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if len(errs) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", errs)
		return
	}

	summary, err := h.Pipeline.Ingest(c.Request.Context(), rows, service.RunKindIngest)
	if err != nil {
		h.Logger.Error().Err(err).Msg("ingest failed")
		writeStoreError(c, err, "Ingest failed")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func readResultRows(c *gin.Context) ([]models.ResultRow, []string, error) {
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		fh, err := c.FormFile("results")
		if err != nil {
			return nil, nil, errors.New("results file required")
		}
		if !validateExt(fh.Filename) {
			return nil, nil, errors.New("results must be a .csv file")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		rows, errs := importer.ParseResults(f)
		return rows, errs, nil
	case contentType == "text/csv":
		rows, errs := importer.ParseResults(c.Request.Body)
		return rows, errs, nil
	default:
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, nil, err
		}
		rows, err := ai.DecodeRows(body)
		return rows, nil, err
	}
}

// @Summary Pull classifier feed
// @Description Fetches the current batch from the classifier and runs the pipeline.
// @Tags results
// @Produce json
// @Success 200 {object} service.RunSummary
// @Failure 502 {object} map[string]any
// @Router /api/results/pull [post]
func (h *Handler) PullResults(c *gin.Context) {
	summary, err := h.Pipeline.Pull(c.Request.Context())
	if err != nil {
		if summary.RunID == "" && !errors.Is(err, db.ErrConnection) {
			writeError(c, http.StatusBadGateway, "FEED_ERROR", "Classifier feed unavailable", err.Error())
			return
		}
		writeStoreError(c, err, "Pull failed")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Recompute manager loads
// @Tags loads
// @Produce json
// @Success 200 {object} service.RunSummary
// @Router /api/loads/reconcile [post]
func (h *Handler) ReconcileLoads(c *gin.Context) {
	summary, err := h.Pipeline.RecomputeLoads(c.Request.Context(), service.RunKindLoads)
	if err != nil {
		writeStoreError(c, err, "Load recomputation failed")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} models.Run
// @Failure 404 {object} map[string]any
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	result, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		writeStoreError(c, err, "No runs found")
		return
	}
	c.JSON(http.StatusOK, result)
}
