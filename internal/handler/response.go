package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain"
	"stockledger/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrPurchaseNotFound):
		return http.StatusNotFound, "PURCHASE_NOT_FOUND", "purchase not found"
	case errors.Is(err, domain.ErrSaleNotFound):
		return http.StatusNotFound, "SALE_NOT_FOUND", "sale not found"
	case errors.Is(err, domain.ErrConsumptionNotFound):
		return http.StatusNotFound, "CONSUMPTION_NOT_FOUND", "consumption not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrDuplicatePurchase):
		return http.StatusConflict, "DUPLICATE_PURCHASE", "purchase with this id already exists"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error()
	case errors.Is(err, domain.ErrInvalidClassification):
		return http.StatusBadRequest, "INVALID_CLASSIFICATION", "classification must be salon or customer"
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict, "SYNC_IN_PROGRESS", "a sync for this classification is already running"
	case errors.Is(err, domain.ErrLockNotObtained):
		return http.StatusConflict, "LOCKED", "another recompute is running; retry shortly"
	case errors.Is(err, domain.ErrExternalFetch):
		return http.StatusBadGateway, "ORDER_SOURCE_UNAVAILABLE", "order source could not be reached"
	case errors.Is(err, domain.ErrReconciliationFailed):
		return http.StatusInternalServerError, "RECONCILIATION_FAILED", "balance stock could not be recomputed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	HandleErrorWithData(c, err, nil)
}

// HandleErrorWithData is HandleError for operations that still produce a
// result when they fail, such as a sync whose order fetch gave up.
func HandleErrorWithData(c *gin.Context, err error, data interface{}) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		middleware.GetLogger(c).WithError(err).Error("internal error")
	}
	c.JSON(status, APIResponse{
		Success: false,
		Data:    data,
		Error:   &APIError{Code: code, Message: msg},
	})
}
