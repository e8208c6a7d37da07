package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/staffing-timesheets/internal/backend"
	"github.com/nurpe/staffing-timesheets/internal/http/middleware"
	"github.com/nurpe/staffing-timesheets/internal/model"
	"github.com/nurpe/staffing-timesheets/internal/service"
	"github.com/nurpe/staffing-timesheets/internal/week"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	timesheets *service.TimesheetService
	log        zerolog.Logger
	now        func() time.Time
}

func NewHandler(timesheets *service.TimesheetService, log zerolog.Logger) *Handler {
	return &Handler{timesheets: timesheets, log: log, now: time.Now}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", h.health)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.GET("/weeks/resolve", h.resolveWeek)
	protected.GET("/weeks/options", h.weekOptions)
	protected.POST("/timesheets/:id/sessions", h.openSession)
	protected.GET("/sessions/:id", h.getSession)
	protected.PATCH("/sessions/:id/cells", h.editCell)
	protected.POST("/sessions/:id/save", h.save)
	protected.GET("/sessions/:id/notifications", h.notifications)
	protected.GET("/sessions/:id/export", h.export)
	protected.DELETE("/sessions/:id", h.closeSession)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type windowResponse struct {
	Token    string `json:"token"`
	Year     int    `json:"year"`
	Week     int    `json:"week"`
	Monday   string `json:"monday"`
	Friday   string `json:"friday"`
	Degraded bool   `json:"degraded"`
}

func newWindowResponse(w week.Window) windowResponse {
	return windowResponse{
		Token:    w.Token(),
		Year:     w.Year,
		Week:     w.Week,
		Monday:   w.MondayISO(),
		Friday:   w.FridayISO(),
		Degraded: w.Degraded,
	}
}

// resolveWeek never fails on a bad token: the fallback window comes back
// flagged as degraded.
func (h *Handler) resolveWeek(c *gin.Context) {
	now := h.now()
	year, err := parseIntQuery(c, "year", now.Year())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	c.JSON(http.StatusOK, newWindowResponse(week.ResolveWindow(c.Query("token"), year, now)))
}

func (h *Handler) weekOptions(c *gin.Context) {
	now := h.now()
	year, err := parseIntQuery(c, "year", now.Year())
	if err != nil || year < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	month, err := parseIntQuery(c, "month", int(now.Month()))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}

	if raw := strings.TrimSpace(c.Query("ordinal")); raw != "" {
		ordinal, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ordinal"})
			return
		}
		w, ok := week.ResolveOrdinal(year, time.Month(month), ordinal)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such week in month"})
			return
		}
		c.JSON(http.StatusOK, newWindowResponse(w))
		return
	}

	c.JSON(http.StatusOK, gin.H{"options": week.Options(year, time.Month(month))})
}

type openSessionRequest struct {
	Week string `json:"week"`
}

func (h *Handler) openSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	timesheetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || timesheetID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timesheet id"})
		return
	}

	var req openSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	snap, err := h.timesheets.OpenSession(c.Request.Context(), service.OpenSessionInput{
		TimesheetID: timesheetID,
		WeekToken:   req.Week,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) getSession(c *gin.Context) {
	principal, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}
	snap, err := h.timesheets.Snapshot(principal, sessionID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type editCellRequest struct {
	RowID     int64           `json:"row_id" binding:"required"`
	ColumnKey string          `json:"column_key" binding:"required"`
	Value     json.RawMessage `json:"value"`
}

func (h *Handler) editCell(c *gin.Context) {
	principal, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req editCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.timesheets.EditCell(service.EditCellInput{
		SessionID: sessionID,
		EntryID:   req.RowID,
		ColumnKey: strings.TrimSpace(req.ColumnKey),
		Value:     cellText(req.Value),
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !res.Applied {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusAccepted, res.Row)
}

// cellText accepts the value either as a JSON string or as a bare number.
func cellText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

type saveRequest struct {
	Week string `json:"week"`
}

func (h *Handler) save(c *gin.Context) {
	principal, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req saveRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.timesheets.SaveAll(c.Request.Context(), service.SaveInput{
		SessionID: sessionID,
		WeekToken: req.Week,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) notifications(c *gin.Context) {
	principal, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var since time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		since = parsed
	}
	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	failures, err := h.timesheets.Notifications(c.Request.Context(), principal, sessionID, since, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": failures})
}

func (h *Handler) export(c *gin.Context) {
	principal, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	result, err := h.timesheets.Export(principal, sessionID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, result.Content)
}

func (h *Handler) closeSession(c *gin.Context) {
	principal, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}
	if err := h.timesheets.CloseSession(principal, sessionID); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sessionParams(c *gin.Context) (principal model.Principal, sessionID uuid.UUID, ok bool) {
	principal, ok = middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return principal, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return principal, uuid.Nil, false
	}
	return principal, sessionID, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, backend.ErrBackend):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("backend request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend request failed"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("timesheet request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
