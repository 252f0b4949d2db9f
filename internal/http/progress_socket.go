package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"levelup-backend-go/internal/services"
)

// ProgressSocket streams the token owner's progress events. Browsers cannot set headers on a
// websocket handshake, so the access token travels in the query string.
func (s *Server) ProgressSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Authentication failed", Kind: string(services.KindUnauthorized)})
		return
	}
	username, err := s.Accounts.Authenticate(token)
	if err != nil {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Authentication failed", Kind: string(services.KindUnauthorized)})
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Hub.Add(conn, username)
	defer func() {
		s.Hub.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
