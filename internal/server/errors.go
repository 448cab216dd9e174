package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Error kinds reported in the "error" field of every non-2xx response
const (
	kindValidation       = "validation_error"
	kindInvalidJSON      = "invalid_json"
	kindInvalidQuery     = "invalid_query"
	kindUnauthorized     = "unauthorized"
	kindConflict         = "conflict"
	kindMethodNotAllowed = "method_not_allowed"
	kindUnsupportedMedia = "unsupported_media_type"
	kindNotFound         = "not_found"
	kindTimeout          = "timeout"
	kindInternal         = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError renders the error envelope {"error": kind, "message": msg}
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	payload, _ := json.Marshal(errorResponse{Error: kind, Message: msg})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeInternalError logs err and answers with a generic 500 that leaks no details
func writeInternalError(w http.ResponseWriter, logger *zap.SugaredLogger, r *http.Request, err error) {
	logger.Errorw("unhandled error",
		"error", err,
		"method", r.Method,
		"uri", r.URL.RequestURI(),
	)
	writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
}

// writeJSON marshals v and writes it with provided status code
func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("marshaling response: %v", err)
		writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(payload); err != nil {
		logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// timeoutBody is the envelope served by http.TimeoutHandler
const timeoutBody = `{"error":"` + kindTimeout + `","message":"request timed out"}`
