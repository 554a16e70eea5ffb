package http

import (
	"encoding/json"
	"net/http"
)

// Toast types matching the client-side notification styling.
const (
	toastSuccess = "success"
	toastError   = "error"
	toastInfo    = "info"
)

type toast struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message, typ string) {
	writeJSON(w, status, toast{Message: message, Type: typ})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeMessage(w, http.StatusMethodNotAllowed, "method not allowed", toastError)
}
