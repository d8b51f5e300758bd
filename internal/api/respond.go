// Package api holds the response envelope shared by every route package.
package api

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body: success plus either data or a
// human-readable message. Cached marks responses served from a stored
// record instead of fresh work.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
}

// OK writes a 200 envelope with data.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// OKCached writes a 200 envelope flagged as served from cache.
func OKCached(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data, Cached: true})
}

// Error writes a failure envelope with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
