package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// envelope is the shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeError maps err onto a status code. Unclassified errors are logged
// and reported with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		fail(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrInvalidCursor):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrConflict):
		fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrUpstream):
		s.log.Warn("upstream failure", "method", r.Method, "path", r.URL.Path, "error", err)
		fail(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err,
			"storage", types.IsStorageError(err))
		fail(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a JSON object from the request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body", types.ErrValidation)
	}
	return nil
}
