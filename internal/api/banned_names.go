package api

import (
	"errors"
	"net/http"

	"github.com/neadvenduro/advenduro/internal/namefilter"
)

type checkNamePayload struct {
	Name string `json:"name"`
}

// handleCheckName tells the registration form whether a team name would be
// accepted.
func (s *Server) handleCheckName(w http.ResponseWriter, r *http.Request) {
	var payload checkNamePayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	result, err := s.matcher.Check(r.Context(), payload.Name)
	if errors.Is(err, namefilter.ErrEmptyName) {
		s.errorJSON(w, errors.New("name is required"), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.serverError(w, r, "check_name", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
