package handler

// Swagger type definitions for API documentation.
// These types are only referenced from the handler annotations.

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}

// FailedSyncResponseBody is an error response that still carries the run statistics.
type FailedSyncResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message" example:"purchase deleted"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"record store not reachable"`
}
