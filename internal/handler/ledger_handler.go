package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stockledger/internal/csvexport"
	"stockledger/internal/domain"
	"stockledger/internal/middleware"
	"stockledger/internal/service"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// LedgerHandler handles purchase, sale, consumption and balance stock endpoints.
type LedgerHandler struct {
	ledgerService service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// parseLedgerFilter extracts product, date range and pagination from query params.
func parseLedgerFilter(c *gin.Context) (domain.LedgerFilter, error) {
	filter := domain.LedgerFilter{
		ProductName: strings.TrimSpace(c.Query("product")),
		Limit:       defaultPageLimit,
	}

	if fromStr := c.Query("from"); fromStr != "" {
		t, err := time.Parse(service.DateLayout, fromStr)
		if err != nil {
			return filter, fmt.Errorf("invalid 'from' date: must be YYYY-MM-DD")
		}
		filter.From = &t
	}
	if toStr := c.Query("to"); toStr != "" {
		t, err := time.Parse(service.DateLayout, toStr)
		if err != nil {
			return filter, fmt.Errorf("invalid 'to' date: must be YYYY-MM-DD")
		}
		filter.To = &t
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, fmt.Errorf("'from' must not be after 'to'")
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid 'offset': must be a non-negative integer")
		}
		filter.Offset = offset
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return filter, fmt.Errorf("invalid 'limit': must be an integer")
		}
		if limit > 0 && limit <= maxPageLimit {
			filter.Limit = limit
		}
	}
	return filter, nil
}

func pageMeta(f domain.LedgerFilter, total int) PagMeta {
	return PagMeta{Total: total, Offset: f.Offset, Limit: f.Limit}
}

// CreatePurchase handles POST /api/v1/purchases
// @Summary Record a purchase
// @Description Record one purchase. Amounts are derived from the GST-inclusive cost and the balance stock is recomputed.
// @Tags purchases
// @Accept json
// @Produce json
// @Param body body service.RecordPurchaseInput true "Purchase"
// @Success 201 {object} Response{data=domain.PurchaseEvent} "Recorded purchase"
// @Failure 400 {object} ErrorResponseBody "Validation error"
// @Failure 409 {object} ErrorResponseBody "Duplicate purchase"
// @Router /purchases [post]
func (h *LedgerHandler) CreatePurchase(c *gin.Context) {
	var input service.RecordPurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	purchase, err := h.ledgerService.RecordPurchase(c.Request.Context(), &input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, purchase)
}

// ListPurchases handles GET /api/v1/purchases
// @Summary List purchases
// @Tags purchases
// @Produce json
// @Param product query string false "Product name"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Limit" default(20)
// @Success 200 {object} Response{data=[]domain.PurchaseEvent,meta=PagMeta} "Purchases"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Router /purchases [get]
func (h *LedgerHandler) ListPurchases(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	purchases, total, err := h.ledgerService.ListPurchases(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, purchases, pageMeta(filter, total))
}

// ListSales handles GET /api/v1/sales
// @Summary List sales
// @Tags sales
// @Produce json
// @Param product query string false "Product name"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Limit" default(20)
// @Success 200 {object} Response{data=[]domain.SaleEvent,meta=PagMeta} "Sales"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Router /sales [get]
func (h *LedgerHandler) ListSales(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	sales, total, err := h.ledgerService.ListSales(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, sales, pageMeta(filter, total))
}

// ListConsumptions handles GET /api/v1/consumptions
// @Summary List salon consumptions
// @Tags consumptions
// @Produce json
// @Param product query string false "Product name"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Limit" default(20)
// @Success 200 {object} Response{data=[]domain.ConsumptionEvent,meta=PagMeta} "Consumptions"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Router /consumptions [get]
func (h *LedgerHandler) ListConsumptions(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	consumptions, total, err := h.ledgerService.ListConsumptions(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, consumptions, pageMeta(filter, total))
}

// Delete returns the DELETE /api/v1/{purchases,sales,consumptions}/:id handler
// for one ledger stream. Every successful delete recomputes the balance stock.
func (h *LedgerHandler) Delete(kind domain.EventKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+string(kind)+" id")
			return
		}

		if err := h.ledgerService.Delete(c.Request.Context(), kind, id); err != nil {
			HandleError(c, err)
			return
		}

		RespondOK(c, gin.H{"message": string(kind) + " deleted"})
	}
}

// BalanceStock handles GET /api/v1/balance-stock
// @Summary Get balance stock
// @Tags balance-stock
// @Produce json
// @Success 200 {object} Response{data=[]domain.BalanceStock} "Balance stock per product"
// @Router /balance-stock [get]
func (h *LedgerHandler) BalanceStock(c *gin.Context) {
	rows, err := h.ledgerService.ListBalanceStock(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, rows)
}

// RecalculateBalanceStock handles POST /api/v1/balance-stock/recalculate
// @Summary Recompute balance stock
// @Description Rebuild the balance stock from every purchase, sale and consumption.
// @Tags balance-stock
// @Produce json
// @Success 200 {object} Response{data=[]domain.BalanceStock} "Recomputed balance stock"
// @Failure 500 {object} ErrorResponseBody "Reconciliation failed"
// @Router /balance-stock/recalculate [post]
func (h *LedgerHandler) RecalculateBalanceStock(c *gin.Context) {
	rows, err := h.ledgerService.RecalculateBalanceStock(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, rows)
}

// ExportBalanceStock handles GET /api/v1/balance-stock/export
// @Summary Export balance stock as CSV
// @Tags balance-stock
// @Produce text/csv
// @Success 200 {file} file "Balance stock CSV"
// @Router /balance-stock/export [get]
func (h *LedgerHandler) ExportBalanceStock(c *gin.Context) {
	rows, err := h.ledgerService.ListBalanceStock(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := csvexport.BuildFilename("balance stock", time.Now())
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(csvexport.BOM); err != nil {
		return
	}
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		return
	}
	if err := w.WriteBalanceStock(rows); err != nil {
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		middleware.GetLogger(c).WithError(err).Error("writing balance stock export failed")
	}
}
