// Package httpx holds the JSON response helpers shared by both services.
package httpx

import (
	"encoding/json"
	"log"
	"net/http"
)

// APIError is the error body every endpoint returns on failure.
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// Error writes a structured error response.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, APIError{Code: code, Message: message})
}

// ValidationErrors writes a 400 carrying every validation failure at once.
func ValidationErrors(w http.ResponseWriter, errs []string) {
	JSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
}
