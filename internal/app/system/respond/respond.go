// Package respond writes the JSON bodies shared by the API endpoints.
package respond

import (
	"encoding/json"
	"net/http"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// ErrorDetails writes {"error": msg, "details": details}.
func ErrorDetails(w http.ResponseWriter, status int, msg, details string) {
	JSON(w, status, map[string]string{"error": msg, "details": details})
}
