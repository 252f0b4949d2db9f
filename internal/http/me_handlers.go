package httpapi

import (
	"net/http"
)

func (s *Server) MyStats(w http.ResponseWriter, r *http.Request) {
	player, err := s.Leveling.GetPlayer(r.Context(), CurrentUsername(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, playerDTO(player))
}

func (s *Server) ResetMyStats(w http.ResponseWriter, r *http.Request) {
	username := CurrentUsername(r)
	if err := s.Leveling.ResetPlayer(r.Context(), username); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	player, err := s.Leveling.GetPlayer(r.Context(), username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, playerDTO(player))
}
