package httpapi

import (
	"net/http"
)

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	logs, err := s.Study.ListSessions(r.Context(), CurrentUsername(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]SessionDTO, 0, len(logs))
	for _, entry := range logs {
		items = append(items, sessionDTO(entry))
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SessionDTO]{Items: items})
}

// StartSession returns the running session's id when one already exists.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.Study.StartSession(r.Context(), CurrentUsername(r), req.Subject)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, IDResponse{ID: id})
}

func (s *Server) ActiveSession(w http.ResponseWriter, r *http.Request) {
	active, err := s.Study.GetActiveSession(r.Context(), CurrentUsername(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if active == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"session": nil})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session": ActiveSessionDTO{ID: active.ID, Subject: active.Subject, StartTime: active.StartTime},
	})
}

func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "sessionId")
	if !ok {
		return
	}
	ended, err := s.Study.EndOwnedSession(r.Context(), CurrentUsername(r), sessionID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sessionEndDTO(ended))
}

func (s *Server) LogStudyHours(w http.ResponseWriter, r *http.Request) {
	var req LogHoursRequest
	if !s.decode(w, r, &req) {
		return
	}
	logged, err := s.Study.LogHours(r.Context(), CurrentUsername(r), req.Subject, *req.Hours)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, sessionEndDTO(logged))
}
