package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	"stockledger/internal/handler"
	"stockledger/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLedgerHandler() (*handler.LedgerHandler, *mocks.MockLedgerService) {
	mockSvc := new(mocks.MockLedgerService)
	return handler.NewLedgerHandler(mockSvc), mockSvc
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLedgerHandler_CreatePurchase_Success(t *testing.T) {
	h, mockSvc := newLedgerHandler()
	created := &domain.PurchaseEvent{ID: uuid.New(), ProductName: "Shampoo", Quantity: 10}
	mockSvc.On("RecordPurchase", mock.Anything, mock.AnythingOfType("*service.RecordPurchaseInput")).Return(created, nil)

	body := `{"date":"2026-03-01","product_name":"Shampoo","quantity":10,"mrp_incl_gst":118,"gst_percentage":18}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/purchases", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreatePurchase(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
	mockSvc.AssertExpectations(t)
}

func TestLedgerHandler_CreatePurchase_BindingErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"date":`},
		{"missing product", `{"date":"2026-03-01","quantity":1}`},
		{"zero quantity", `{"date":"2026-03-01","product_name":"Shampoo","quantity":0}`},
		{"bad date", `{"date":"March 1","product_name":"Shampoo","quantity":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mockSvc := newLedgerHandler()
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/purchases", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			h.CreatePurchase(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
			mockSvc.AssertNotCalled(t, "RecordPurchase", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerHandler_CreatePurchase_Duplicate(t *testing.T) {
	h, mockSvc := newLedgerHandler()
	mockSvc.On("RecordPurchase", mock.Anything, mock.Anything).Return(nil, domain.ErrDuplicatePurchase)

	body := `{"date":"2026-03-01","product_name":"Shampoo","quantity":1}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/purchases", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreatePurchase(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_PURCHASE", decode(t, w).Error.Code)
}

func TestLedgerHandler_ListSales_ParsesFilter(t *testing.T) {
	h, mockSvc := newLedgerHandler()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	mockSvc.On("ListSales", mock.Anything, mock.MatchedBy(func(f domain.LedgerFilter) bool {
		return f.ProductName == "Shampoo" && f.From != nil && f.From.Equal(from) &&
			f.To != nil && f.To.Equal(to) && f.Offset == 10 && f.Limit == 5
	})).Return([]domain.SaleEvent{{ProductName: "Shampoo"}}, 11, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet,
		"/api/v1/sales?product=Shampoo&from=2026-03-01&to=2026-03-31&offset=10&limit=5", http.NoBody)

	h.ListSales(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 11, resp.Meta.Total)
	assert.Equal(t, 10, resp.Meta.Offset)
	assert.Equal(t, 5, resp.Meta.Limit)
	mockSvc.AssertExpectations(t)
}

func TestLedgerHandler_ListPurchases_LimitDefaults(t *testing.T) {
	for _, q := range []string{"", "?limit=0", "?limit=500"} {
		t.Run("query"+q, func(t *testing.T) {
			h, mockSvc := newLedgerHandler()
			mockSvc.On("ListPurchases", mock.Anything, mock.MatchedBy(func(f domain.LedgerFilter) bool {
				return f.Limit == 20 && f.Offset == 0
			})).Return([]domain.PurchaseEvent{}, 0, nil)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/purchases"+q, http.NoBody)

			h.ListPurchases(c)

			assert.Equal(t, http.StatusOK, w.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestLedgerHandler_ListConsumptions_InvalidFilter(t *testing.T) {
	tests := []string{
		"?from=yesterday",
		"?to=2026-13-01",
		"?from=2026-03-10&to=2026-03-01",
		"?offset=-1",
		"?limit=abc",
	}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			h, mockSvc := newLedgerHandler()
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/consumptions"+q, http.NoBody)

			h.ListConsumptions(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_FILTER", decode(t, w).Error.Code)
			mockSvc.AssertNotCalled(t, "ListConsumptions", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerHandler_Delete(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name       string
		kind       domain.EventKind
		param      string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"sale deleted", domain.EventKindSale, id.String(), nil, http.StatusOK, ""},
		{"purchase missing", domain.EventKindPurchase, id.String(), domain.ErrPurchaseNotFound, http.StatusNotFound, "PURCHASE_NOT_FOUND"},
		{"consumption missing", domain.EventKindConsumption, id.String(), domain.ErrConsumptionNotFound, http.StatusNotFound, "CONSUMPTION_NOT_FOUND"},
		{"recompute failed", domain.EventKindSale, id.String(), domain.ErrReconciliationFailed, http.StatusInternalServerError, "RECONCILIATION_FAILED"},
		{"bad id", domain.EventKindSale, "not-a-uuid", nil, http.StatusBadRequest, "INVALID_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mockSvc := newLedgerHandler()
			if tt.param == id.String() {
				mockSvc.On("Delete", mock.Anything, tt.kind, id).Return(tt.err)
			}

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodDelete, "/", http.NoBody)
			c.Params = gin.Params{{Key: "id", Value: tt.param}}

			h.Delete(tt.kind)(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode(t, w).Error.Code)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestLedgerHandler_BalanceStock(t *testing.T) {
	h, mockSvc := newLedgerHandler()
	rows := []domain.BalanceStock{{ProductName: "Shampoo", BalanceQty: 5}}
	mockSvc.On("ListBalanceStock", mock.Anything).Return(rows, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/balance-stock", http.NoBody)

	h.BalanceStock(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                  `json:"success"`
		Data    []domain.BalanceStock `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Shampoo", resp.Data[0].ProductName)
}

func TestLedgerHandler_RecalculateBalanceStock_Failure(t *testing.T) {
	h, mockSvc := newLedgerHandler()
	mockSvc.On("RecalculateBalanceStock", mock.Anything).
		Return(nil, errors.Join(domain.ErrReconciliationFailed, domain.ErrLockNotObtained))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/balance-stock/recalculate", http.NoBody)

	h.RecalculateBalanceStock(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LOCKED", decode(t, w).Error.Code)
}

func TestLedgerHandler_ExportBalanceStock(t *testing.T) {
	h, mockSvc := newLedgerHandler()
	rows := []domain.BalanceStock{{ProductName: "Shampoo", BalanceQty: 5, Amounts: domain.Amounts{TaxableValue: 500}}}
	mockSvc.On("ListBalanceStock", mock.Anything).Return(rows, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/balance-stock/export", http.NoBody)

	h.ExportBalanceStock(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "balance_stock_")
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\xEF\xBB\xBFProduct,"))
	assert.Contains(t, body, "Shampoo,,,5,500.00")
}
