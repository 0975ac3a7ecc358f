package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain"
	"stockledger/internal/service"
)

// SyncRequest is the optional body of a sync trigger. Missing or out-of-range
// dates fall back to the default trailing window.
type SyncRequest struct {
	StartDate string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// SyncHandler handles POS synchronization endpoints.
type SyncHandler struct {
	syncService service.SyncService
	loc         *time.Location
}

// NewSyncHandler creates a new SyncHandler. Request dates are read as
// calendar days in loc.
func NewSyncHandler(syncService service.SyncService, loc *time.Location) *SyncHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SyncHandler{syncService: syncService, loc: loc}
}

// Consumption handles POST /api/v1/sync/consumption
// @Summary Sync salon consumption
// @Description Pull salon-use orders from the POS for the window and record them as consumptions.
// @Tags sync
// @Accept json
// @Produce json
// @Param body body SyncRequest false "Date window"
// @Success 200 {object} Response{data=domain.SyncResult} "Run statistics"
// @Failure 400 {object} ErrorResponseBody "Invalid date range"
// @Failure 409 {object} ErrorResponseBody "Sync already running"
// @Failure 502 {object} FailedSyncResponseBody "Order source unavailable"
// @Router /sync/consumption [post]
func (h *SyncHandler) Consumption(c *gin.Context) {
	h.sync(c, domain.ClassificationSalon)
}

// Sales handles POST /api/v1/sync/sales
// @Summary Sync customer sales
// @Description Pull customer orders from the POS for the window and record them as sales.
// @Tags sync
// @Accept json
// @Produce json
// @Param body body SyncRequest false "Date window"
// @Success 200 {object} Response{data=domain.SyncResult} "Run statistics"
// @Failure 400 {object} ErrorResponseBody "Invalid date range"
// @Failure 409 {object} ErrorResponseBody "Sync already running"
// @Failure 502 {object} FailedSyncResponseBody "Order source unavailable"
// @Router /sync/sales [post]
func (h *SyncHandler) Sales(c *gin.Context) {
	h.sync(c, domain.ClassificationCustomer)
}

func (h *SyncHandler) sync(c *gin.Context, classification domain.Classification) {
	var req SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}
	window, err := h.parseWindow(req)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.syncService.Sync(c.Request.Context(), classification, window)
	if err != nil {
		if result != nil {
			HandleErrorWithData(c, err, result)
			return
		}
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

func (h *SyncHandler) parseWindow(req SyncRequest) (domain.DateWindow, error) {
	var w domain.DateWindow
	if req.StartDate == "" || req.EndDate == "" {
		return w, nil
	}
	start, err := time.ParseInLocation(service.DateLayout, req.StartDate, h.loc)
	if err != nil {
		return w, fmt.Errorf("%w: start_date: %v", domain.ErrInvalidDateRange, err)
	}
	end, err := time.ParseInLocation(service.DateLayout, req.EndDate, h.loc)
	if err != nil {
		return w, fmt.Errorf("%w: end_date: %v", domain.ErrInvalidDateRange, err)
	}
	return domain.DateWindow{Start: start, End: end}, nil
}

// Runs handles GET /api/v1/sync/runs
// @Summary List sync runs
// @Tags sync
// @Produce json
// @Param classification query string false "customer or salon"
// @Param limit query int false "Limit" default(20)
// @Success 200 {object} Response{data=[]domain.SyncRun} "Recent runs"
// @Failure 400 {object} ErrorResponseBody "Invalid classification"
// @Router /sync/runs [get]
func (h *SyncHandler) Runs(c *gin.Context) {
	var classification domain.Classification
	if raw := c.Query("classification"); raw != "" {
		parsed, ok := domain.ParseClassification(raw)
		if !ok {
			HandleError(c, domain.ErrInvalidClassification)
			return
		}
		classification = parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	runs, err := h.syncService.ListRuns(c.Request.Context(), classification, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, runs)
}
