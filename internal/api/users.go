package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/neadvenduro/advenduro/internal/auth"
)

// handleGetMyProfile returns the authenticated user's profile, role included.
func (s *Server) handleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	user := s.mustUser(w, r)
	if user == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"user": toUserResponse(user)})
}

type updateProfilePayload struct {
	Name        string `json:"name" validate:"omitempty,max=100"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" validate:"omitempty,min=8,max=128"`
}

// handleUpdateMyProfile changes the name and/or the password. Changing an
// existing password requires the old one.
func (s *Server) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var payload updateProfilePayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" && payload.NewPassword == "" {
		s.errorJSON(w, errors.New("no changes provided"), http.StatusBadRequest)
		return
	}

	user := s.mustUser(w, r)
	if user == nil {
		return
	}

	var newHash string
	if payload.NewPassword != "" {
		if user.PasswordHash.Valid && user.PasswordHash.String != "" {
			if payload.OldPassword == "" {
				s.errorJSON(w, errors.New("old password is required to set a new one"), http.StatusBadRequest)
				return
			}
			if !auth.CheckPasswordHash(payload.OldPassword, user.PasswordHash.String) {
				s.errorJSON(w, errors.New("incorrect old password"), http.StatusUnauthorized)
				return
			}
		}
		hash, err := auth.HashPassword(payload.NewPassword)
		if err != nil {
			s.serverError(w, r, "hash_password", err)
			return
		}
		newHash = hash
	}

	err := s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		if newHash != "" {
			return s.db.SetUserPassword(r.Context(), tx, user.ID, name, newHash)
		}
		return s.db.UpdateUserName(r.Context(), tx, user.ID, name)
	})
	if err != nil {
		s.serverError(w, r, "update_profile", err)
		return
	}

	updated, err := s.db.GetUserByID(r.Context(), s.db.DB(), user.ID)
	if err != nil {
		s.serverError(w, r, "load_user", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"user": toUserResponse(updated)})
}
