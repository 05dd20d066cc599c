package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/service"
)

// @Summary List tickets with their classification
// @Tags tickets
// @Produce json
// @Param office query string false "Assigned office"
// @Param language query string false "Language"
// @Param resolution query string false "structured, name_match or unresolved"
// @Param q query string false "Search"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/tickets [get]
func (h *Handler) TicketsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	f := db.TicketFilter{
		Office:     strings.TrimSpace(c.Query("office")),
		Language:   strings.ToUpper(strings.TrimSpace(c.Query("language"))),
		Resolution: strings.TrimSpace(c.Query("resolution")),
		Q:          c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	}

	items, err := h.Store.ListTickets(c.Request.Context(), f)
	if err != nil {
		writeStoreError(c, err, "Failed to list tickets")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Ticket details
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket GUID"
// @Success 200 {object} models.TicketDetails
// @Failure 404 {object} map[string]any
// @Router /api/tickets/{id} [get]
func (h *Handler) TicketDetails(c *gin.Context) {
	result, err := h.Store.GetTicketDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Ticket not found")
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary List managers with their loads
// @Tags managers
// @Produce json
// @Param office query string false "Office"
// @Param skill query string false "Skill"
// @Success 200 {object} map[string]any
// @Router /api/managers [get]
func (h *Handler) ManagersList(c *gin.Context) {
	office := strings.TrimSpace(c.Query("office"))
	skill := strings.ToUpper(strings.TrimSpace(c.Query("skill")))
	items, err := h.Store.ListManagers(c.Request.Context(), office, skill)
	if err != nil {
		writeStoreError(c, err, "Failed to list managers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary List business units
// @Tags business-units
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/business-units [get]
func (h *Handler) BusinessUnitsList(c *gin.Context) {
	items, err := h.Store.ListBusinessUnits(c.Request.Context())
	if err != nil {
		writeStoreError(c, err, "Failed to list business units")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Run an aggregation
// @Description Evaluates an aggregation spec over reconciled results. Invalid specs yield a warning result, not an error.
// @Tags analytics
// @Accept json
// @Produce json
// @Param spec body analytics.Spec true "Aggregation spec"
// @Success 200 {object} service.QueryResponse
// @Router /api/analytics/query [post]
func (h *Handler) AnalyticsQuery(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	var spec analytics.Spec
	if err := json.Unmarshal(body, &spec); err != nil {
		c.JSON(http.StatusOK, service.QueryResponse{
			Result: analytics.WarningResult(&analytics.Warning{Field: "spec", Message: err.Error()}),
		})
		return
	}
	h.respondQuery(c, spec, nil)
}

func (h *Handler) respondQuery(c *gin.Context, spec analytics.Spec, extra gin.H) {
	resp, err := h.Query.Query(c.Request.Context(), spec)
	if err != nil {
		writeStoreError(c, err, "Query failed")
		return
	}
	if extra == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	extra["response"] = resp
	c.JSON(http.StatusOK, extra)
}

type ChatRequest struct {
	Message string           `json:"message" validate:"required,max=2000"`
	History []ai.ChatMessage `json:"history" validate:"max=20,dive"`
}

// @Summary Ask a question about the tickets
// @Description Translates the question into an aggregation spec and evaluates it.
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body ChatRequest true "Question"
// @Success 200 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Router /api/assistant/chat [post]
func (h *Handler) AssistantChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	spec, err := h.Translator.Translate(c.Request.Context(), req.Message, req.History)
	if err != nil {
		var rl ai.RateLimitError
		if errors.As(err, &rl) {
			if rl.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
			}
			writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Assistant is rate limited", err.Error())
			return
		}
		h.Logger.Warn().Err(err).Msg("assistant translation failed")
		writeError(c, http.StatusBadGateway, "ASSISTANT_ERROR", "Assistant unavailable", err.Error())
		return
	}
	h.respondQuery(c, spec, gin.H{"spec": spec})
}

// @Summary Dashboard
// @Description Summary counters and preset charts.
// @Tags analytics
// @Produce json
// @Success 200 {object} service.DashboardResponse
// @Router /api/dashboard [get]
func (h *Handler) Dashboard(c *gin.Context) {
	resp, err := h.Query.Dashboard(c.Request.Context(), h.Presets)
	if err != nil {
		writeStoreError(c, err, "Dashboard failed")
		return
	}
	c.JSON(http.StatusOK, resp)
}
