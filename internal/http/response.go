package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"levelup-backend-go/internal/services"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError maps a service failure to its status. Persistence details stay in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr services.ServiceError
	if !errors.As(err, &svcErr) {
		s.Log.WithError(err).WithField("request_id", CurrentRequestID(r)).Error("unhandled error")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if svcErr.Kind == services.KindPersistenceFailure {
		s.Log.WithError(err).WithField("request_id", CurrentRequestID(r)).Error("persistence failure")
		WriteJSON(w, svcErr.Status, ErrorResponse{Message: "Internal server error", Kind: string(svcErr.Kind)})
		return
	}
	WriteJSON(w, svcErr.Status, ErrorResponse{Message: svcErr.Message, Kind: string(svcErr.Kind)})
}
