package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	models "HeatPulse/internal/domain/models"
	domrepo "HeatPulse/internal/domain/repository"
	"HeatPulse/internal/hub"
	"HeatPulse/internal/jobs"
	icache "HeatPulse/internal/service/cache"
	xhttp "HeatPulse/pkg/http"
	xlogger "HeatPulse/pkg/logger"
)

const (
	rankingCacheTTL = 30 * time.Second
	jobLogLimit     = 50
)

// HeatHandler exposes the query and control surface: auth, ranking,
// trend, alerts, job registry and the live-update websocket.
type HeatHandler struct {
	heat    domrepo.HeatStore
	alerts  domrepo.AlertStore
	jobLogs domrepo.JobLogStore
	tracker *jobs.Tracker
	hub     *hub.Hub
	cache   icache.BytesCache

	password string
	mu       sync.Mutex
	tokens   map[string]struct{}

	logger *xlogger.Logger
}

func NewHeatHandler(
	heat domrepo.HeatStore,
	alerts domrepo.AlertStore,
	jobLogs domrepo.JobLogStore,
	tracker *jobs.Tracker,
	h *hub.Hub,
	cache icache.BytesCache,
	password string,
	logger *xlogger.Logger,
) *HeatHandler {
	return &HeatHandler{
		heat:     heat,
		alerts:   alerts,
		jobLogs:  jobLogs,
		tracker:  tracker,
		hub:      h,
		cache:    cache,
		password: password,
		tokens:   make(map[string]struct{}),
		logger:   logger,
	}
}

func (h *HeatHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.WS)
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/auth", h.Auth)

	authed := g.Group("", h.requireAuth)
	authed.GET("/heat/ranking", h.Ranking)
	authed.GET("/heat/trend/:code", h.Trend)
	authed.GET("/alerts", h.Alerts)
	authed.GET("/jobs", h.Jobs)
	authed.POST("/job/trigger", h.Trigger)
}

func (h *HeatHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Auth exchanges the configured password for a bearer token. Tokens
// live in process memory; a restart invalidates them all.
func (h *HeatHandler) Auth(c echo.Context) error {
	req := &models.AuthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Password != h.password {
		return xhttp.AppErrorResponse(c, xhttp.ForbiddenError("wrong password"))
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		h.logger.Error("token generation failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	token := hex.EncodeToString(buf)
	h.mu.Lock()
	h.tokens[token] = struct{}{}
	h.mu.Unlock()

	return xhttp.SuccessResponse(c, map[string]string{"token": token})
}

func (h *HeatHandler) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("missing token"))
		}
		token := auth[len(prefix):]
		h.mu.Lock()
		_, ok := h.tokens[token]
		h.mu.Unlock()
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("invalid token"))
		}
		return next(c)
	}
}

type rankingPage struct {
	Items []models.HeatScore `json:"items"`
	Total int                `json:"total"`
}

// Ranking returns one page of the latest scan batch ordered by total
// heat. Pages are cached briefly; the cache is best-effort and a cache
// failure falls through to the store.
func (h *HeatHandler) Ranking(c echo.Context) error {
	req := &models.PageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := fmt.Sprintf("ranking:%d:%d", req.Page, req.Size)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err == nil && ok {
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	ctx := c.Request().Context()
	ts, err := h.heat.LatestBatchTs(ctx)
	if err != nil {
		h.logger.Error("ranking latest_batch_ts error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	page := rankingPage{Items: []models.HeatScore{}}
	if !ts.IsZero() {
		items, total, err := h.heat.BatchScores(ctx, ts, (req.Page-1)*req.Size, req.Size)
		if err != nil {
			h.logger.Error("ranking batch_scores error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		page.Items, page.Total = items, total
	}

	if h.cache != nil {
		if b, err := json.Marshal(page); err == nil {
			_ = h.cache.SetBytes(key, b, rankingCacheTTL)
		}
	}
	return xhttp.SuccessResponse(c, page)
}

// Trend returns an instrument's score series over the last N hours.
func (h *HeatHandler) Trend(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return xhttp.BadRequestResponse(c, "code required")
	}
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	since := time.Now().Add(-time.Duration(req.Hours) * time.Hour)
	rows, err := h.heat.Trend(c.Request().Context(), code, since)
	if err != nil {
		h.logger.Error("trend query error",
			xlogger.String("code", code),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	if rows == nil {
		rows = []models.HeatScore{}
	}
	return xhttp.SuccessResponse(c, rows)
}

type alertPage struct {
	Items []models.Alert `json:"items"`
	Total int            `json:"total"`
}

// Alerts pages through alert history newest first.
func (h *HeatHandler) Alerts(c echo.Context) error {
	req := &models.PageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	items, total, err := h.alerts.List(c.Request().Context(), (req.Page-1)*req.Size, req.Size)
	if err != nil {
		h.logger.Error("alerts list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if items == nil {
		items = []models.Alert{}
	}
	return xhttp.SuccessResponse(c, alertPage{Items: items, Total: total})
}

type jobsView struct {
	Running map[string]models.JobState `json:"running"`
	Recent  []models.JobLogEntry       `json:"recent"`
}

// Jobs returns the live registry alongside the recent audit trail.
func (h *HeatHandler) Jobs(c echo.Context) error {
	recent, err := h.jobLogs.Recent(c.Request().Context(), jobLogLimit)
	if err != nil {
		h.logger.Error("job logs query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if recent == nil {
		recent = []models.JobLogEntry{}
	}
	return xhttp.SuccessResponse(c, jobsView{
		Running: h.tracker.Snapshot(),
		Recent:  recent,
	})
}

// Trigger schedules a job asynchronously. A running job is rejected
// with a conflict; an unknown one with not found.
func (h *HeatHandler) Trigger(c echo.Context) error {
	req := &models.TriggerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.tracker.Trigger(req.Job); err != nil {
		switch {
		case errors.Is(err, jobs.ErrAlreadyRunning):
			return xhttp.AppErrorResponse(c, xhttp.ConflictErrorf("job %s already running", req.Job))
		case errors.Is(err, jobs.ErrUnknownJob):
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("job %s not found", req.Job))
		default:
			h.logger.Error("trigger error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ok":      true,
		"message": fmt.Sprintf("%s triggered", req.Job),
	})
}

// WS upgrades to the live-update stream.
func (h *HeatHandler) WS(c echo.Context) error {
	return h.hub.Serve(c.Response(), c.Request())
}
