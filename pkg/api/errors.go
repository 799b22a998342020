package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/logger"
	"buddyfeed/pkg/storage"
)

var (
	ErrMalformedID   = fmt.Errorf("%w: malformed id", storage.ErrValidation)
	ErrMalformedBody = fmt.Errorf("%w: malformed request body", storage.ErrValidation)
)

type errorResponse struct {
	Message string `json:"message"`
}

// status maps the failure classes to HTTP status codes.
func status(err error) int {
	switch {
	case errors.Is(err, storage.ErrValidation), errors.Is(err, identity.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, identity.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, identity.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail answers the request with the status for err. Client errors are logged at debug
// level, server faults at error level with the underlying cause kept out of the response.
func fail(w http.ResponseWriter, r *http.Request, handler string, err error) {
	code := status(err)
	sID := logger.Short(r.Context())

	msg := err.Error()
	switch {
	case code == http.StatusInternalServerError:
		log.Errorf("[%s][%s] %v", handler, sID, err)
		msg = "internal server error"
	case code == http.StatusServiceUnavailable:
		log.Errorf("[%s][%s] %v", handler, sID, err)
		msg = "service temporarily unavailable"
	default:
		log.Debugf("[%s][%s] %v", handler, sID, err)
	}

	writeError(w, code, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[writeJSON] failed to encode response: %v", err)
	}
}
