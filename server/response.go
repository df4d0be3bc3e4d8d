package server

import (
	"encoding/json"
	"net/http"
)

// ErrorKind is the stable machine-readable error discriminator clients see.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// StatusCode maps an error kind to its HTTP status.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errorResponse is the error envelope. Internal error text never goes in
// here; handlers log the cause and send a generic message for 5xx.
type errorResponse struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind"`
}

func respondWithError(w http.ResponseWriter, kind ErrorKind, message string) {
	respondWithJSON(w, kind.StatusCode(), errorResponse{Error: message, Kind: kind})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response","kind":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
