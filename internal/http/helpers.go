package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"levelup-backend-go/internal/services"
)

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// pathID reads a positive integer URL parameter. It writes the 400 response and returns false
// when the value is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || value <= 0 {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid " + name, Kind: string(services.KindInvalidInput)})
		return 0, false
	}
	return value, true
}
