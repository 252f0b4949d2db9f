package httpapi

import (
	"net/http"

	"levelup-backend-go/internal/leaderboard"
)

func (s *Server) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := leaderboard.ClampLimit(parseInt(r.URL.Query().Get("limit"), leaderboard.DefaultLimit))
	entries, err := s.Board.Top(r.Context(), limit)
	if err != nil {
		s.Log.WithError(err).Error("leaderboard read failed")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[leaderboard.Entry]{Items: entries})
}
