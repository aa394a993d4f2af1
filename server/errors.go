package server

import (
	"errors"
	"net/http"

	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/go-chi/chi/v5/middleware"
)

var errPayloadTooLarge = errors.New("chunk exceeds the maximum chunk size")

func statusOf(err error) int {
	var (
		validation   *uploaderr.ValidationError
		inconsistent *uploaderr.InconsistentTotalError
	)
	switch {
	case errors.Is(err, errPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &inconsistent):
		return http.StatusConflict
	case errors.Is(err, uploaderr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	reqID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("[%s] %s %s failed: %s", reqID, r.Method, r.URL.Path, err)
		// storage details stay in the log
		writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
		return
	}
	s.logger.Debugf("[%s] %s %s rejected: %s", reqID, r.Method, r.URL.Path, err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
