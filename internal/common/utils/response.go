// internal/common/utils/response.go
// Shared HTTP response envelope

package utils

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every JSON HTTP response is wrapped in.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody matches spec.md §7's error envelope: {code, message, details?}.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// SuccessResponse writes a 2xx envelope carrying data.
func SuccessResponse(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// MessageResponse writes a 2xx envelope carrying only a message.
func MessageResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: true, Message: message})
}

// ErrorResponse writes the error envelope for a given HTTP status/code/message.
func ErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// ErrorResponseWithDetails is ErrorResponse plus a details payload, used for
// validation failures that need to point at the offending field.
func ErrorResponseWithDetails(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, Response{Success: false, Error: &ErrorBody{Code: code, Message: message, Details: details}})
}
