package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/neadvenduro/advenduro/internal/auth"
	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/ratelimit"
)

var (
	errInvalidInvite = errors.New("invalid or already used invitation")
	errWrongPassword = errors.New("invalid email or password")
)

type acceptInvitationPayload struct {
	Token    string `json:"token" validate:"required"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// handleAcceptInvitation joins the invited email to the team and signs the
// user in. A new account is created when none exists; an account without a
// password (a rider added by a team lead) gets the given one; an existing
// password must match.
func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var payload acceptInvitationPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	name := strings.TrimSpace(payload.Name)

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		s.serverError(w, r, "hash_password", err)
		return
	}

	var user *database.User
	err = s.db.WriteTx(ctx, func(tx *sql.Tx) error {
		inv, err := s.db.GetInvitationByToken(ctx, tx, payload.Token)
		if errors.Is(err, database.ErrNotFound) {
			return errInvalidInvite
		}
		if err != nil {
			return err
		}
		if inv.Status != database.InvitationPending {
			return errInvalidInvite
		}

		user, err = s.db.GetUserByEmail(ctx, tx, inv.Email)
		switch {
		case errors.Is(err, database.ErrNotFound):
			user, err = s.db.CreateUser(ctx, tx, name, inv.Email, hash)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		case !user.PasswordHash.Valid || user.PasswordHash.String == "":
			if err := s.db.SetUserPassword(ctx, tx, user.ID, name, hash); err != nil {
				return err
			}
		case !auth.CheckPasswordHash(payload.Password, user.PasswordHash.String):
			return errWrongPassword
		}

		if _, err := s.joinTeam(ctx, tx, inv.TeamID, user.ID, inv.Role); err != nil {
			return err
		}
		if err := s.db.AcceptInvitation(ctx, tx, inv.ID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return errInvalidInvite
			}
			return err
		}
		return s.db.LogActivity(ctx, tx, inv.TeamID, user.ID, database.ActivityAcceptInvitation, ratelimit.ClientIP(r))
	})
	switch {
	case errors.Is(err, errInvalidInvite):
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	case errors.Is(err, errWrongPassword):
		s.errorJSON(w, err, http.StatusUnauthorized)
		return
	case s.rosterError(w, err):
		return
	case err != nil:
		s.serverError(w, r, "accept_invitation", err)
		return
	}

	user, err = s.db.GetUserByID(ctx, s.db.DB(), user.ID)
	if err != nil {
		s.serverError(w, r, "load_user", err)
		return
	}
	s.respondWithSession(w, r, http.StatusOK, user)
}
