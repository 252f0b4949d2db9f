package httpapi

import (
	"net/http"
)

func (s *Server) ListQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := s.Quests.ListQuests(r.Context(), CurrentUsername(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]QuestDTO, 0, len(quests))
	for _, quest := range quests {
		items = append(items, questDTO(quest))
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[QuestDTO]{Items: items})
}

func (s *Server) CreateQuest(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.Quests.CreateQuest(r.Context(), CurrentUsername(r), req.Title, req.Description, req.RewardXP)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) StartQuest(w http.ResponseWriter, r *http.Request) {
	questID, ok := pathID(w, r, "questId")
	if !ok {
		return
	}
	var req StartQuestRequest
	if !s.decode(w, r, &req) {
		return
	}
	username := CurrentUsername(r)
	if err := s.Quests.StartQuest(r.Context(), username, questID, *req.DurationMinutes); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	remaining, err := s.Quests.RemainingSeconds(r.Context(), username, questID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"id": questID, "remainingSeconds": remaining})
}

func (s *Server) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	questID, ok := pathID(w, r, "questId")
	if !ok {
		return
	}
	done, err := s.Quests.CompleteQuest(r.Context(), CurrentUsername(r), questID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, QuestCompletionDTO{QuestID: done.QuestID, RewardXP: done.RewardXP, Award: done.Award})
}

func (s *Server) QuestRemaining(w http.ResponseWriter, r *http.Request) {
	questID, ok := pathID(w, r, "questId")
	if !ok {
		return
	}
	remaining, err := s.Quests.RemainingSeconds(r.Context(), CurrentUsername(r), questID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"id": questID, "remainingSeconds": remaining})
}
