package httpapi

import (
	"net/http"
)

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Tasks.ListTasks(r.Context(), CurrentUsername(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]TaskDTO, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskDTO(task))
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[TaskDTO]{Items: items})
}

func (s *Server) AddTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.Tasks.AddTask(r.Context(), CurrentUsername(r), req.Title, req.Description)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, TaskResultDTO{Task: taskDTO(result.Task), Award: result.Award})
}

func (s *Server) CompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "taskId")
	if !ok {
		return
	}
	result, err := s.Tasks.CompleteTask(r.Context(), CurrentUsername(r), taskID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, TaskResultDTO{Task: taskDTO(result.Task), Award: result.Award})
}
