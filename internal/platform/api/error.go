// Package api writes the {success, message, data, errors} response envelope
// used by the comments HTTP API.
package api

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope around data.
func WriteData(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func WriteError(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	WriteJSON(w, status, Response{Success: false, Message: message, Errors: fields})
}

// Convenience helpers
func BadRequest(w http.ResponseWriter, message string, fields map[string][]string) {
	WriteError(w, http.StatusBadRequest, message, fields)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, nil)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, nil)
}

func Internal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
}
