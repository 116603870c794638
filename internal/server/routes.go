package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/zsiec/framegate/internal/errors"
	"github.com/zsiec/framegate/internal/sensor"
	"github.com/zsiec/framegate/pkg/version"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 1000
)

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleListValidators(w http.ResponseWriter, r *http.Request) {
	list := s.validators.List()
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"validators": list,
		"count":      len(list),
	})
}

func (s *Server) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, ok := s.validators.Get(id)
	if !ok {
		s.writeError(w, r, apperrors.NewNotFoundError("validator").WithDetails(map[string]interface{}{"id": id}))
		return
	}
	s.writeJSON(w, r, http.StatusOK, v.Stats())
}

// handleNotifications serves recent notifications. ?source=redis reads the
// durable history instead of the in-memory ring.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxNotificationLimit {
			s.writeError(w, r, apperrors.NewValidationError("limit must be an integer between 1 and 1000"))
			return
		}
		limit = n
	}

	var (
		list   []sensor.Notification
		source string
	)
	switch r.URL.Query().Get("source") {
	case "", "memory":
		source = "memory"
		if s.recent != nil {
			list = s.recent.Recent(limit)
		}
	case "redis":
		source = "redis"
		if s.archive == nil {
			s.writeError(w, r, apperrors.NewServiceDownError("notification archive"))
			return
		}
		var err error
		list, err = s.archive.History(r.Context(), limit)
		if err != nil {
			s.writeError(w, r, apperrors.WrapInternalError(err, "Failed to read notification history"))
			return
		}
	default:
		s.writeError(w, r, apperrors.NewValidationError("source must be 'memory' or 'redis'"))
		return
	}

	if list == nil {
		list = []sensor.Notification{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"notifications": list,
		"count":         len(list),
		"source":        source,
	})
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
	}
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
