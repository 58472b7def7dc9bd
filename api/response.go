package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eddielth/sensor-monitor/logger"
)

// ErrorCode is a stable machine-readable error identifier
type ErrorCode string

const (
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeInvalidFormat       ErrorCode = "invalid_format"
	ErrorCodeServiceUnavailable  ErrorCode = "service_unavailable"
)

// APIError is the JSON body of every error response
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newAPIError(code ErrorCode, message string, statusCode int) APIError {
	return APIError{Code: code, Message: message, StatusCode: statusCode}
}

func respondWithError(w http.ResponseWriter, apiErr APIError) {
	respondWithJSON(w, apiErr.StatusCode, apiErr)
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode JSON response: %v", err)
	}
}
