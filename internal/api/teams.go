package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/neadvenduro/advenduro/internal/auth"
	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/logging"
	"github.com/neadvenduro/advenduro/internal/namefilter"
	"github.com/neadvenduro/advenduro/internal/ratelimit"
	"github.com/neadvenduro/advenduro/internal/readiness"
)

// placeholderDomain is used for riders added without an email address, so
// that documents can be attached to them before they have an account.
const placeholderDomain = "placeholder.local"

var (
	errTeamFull      = fmt.Errorf("a team can have at most %d members", readiness.MaxMembers)
	errAlreadyMember = errors.New("this user is already on the team")
)

// joinTeam adds the user to the roster inside tx, refusing a full team or a
// second membership of the same user.
func (s *Server) joinTeam(ctx context.Context, tx *sql.Tx, teamID, userID int64, role string) (*database.TeamMember, error) {
	n, err := s.db.CountTeamMembers(ctx, tx, teamID)
	if err != nil {
		return nil, err
	}
	if n >= readiness.MaxMembers {
		return nil, errTeamFull
	}
	already, err := s.db.IsTeamMember(ctx, tx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, errAlreadyMember
	}

	m, err := s.db.AddTeamMember(ctx, tx, teamID, userID, role)
	if database.IsUniqueViolation(err) {
		return nil, errAlreadyMember
	}
	return m, err
}

// rosterError answers the conflicts joinTeam reports. It returns false for
// any other error.
func (s *Server) rosterError(w http.ResponseWriter, err error) bool {
	if errors.Is(err, errTeamFull) || errors.Is(err, errAlreadyMember) {
		s.errorJSON(w, err, http.StatusConflict)
		return true
	}
	return false
}

func teamIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid team id")
	}
	return id, nil
}

// requireTeamLead answers 403 unless the user is an owner or captain of the
// team. It returns false when the request must stop.
func (s *Server) requireTeamLead(w http.ResponseWriter, r *http.Request, teamID, userID int64) bool {
	lead, err := s.db.IsTeamLeadOf(r.Context(), teamID, userID)
	if err != nil {
		s.serverError(w, r, "check_team_lead", err)
		return false
	}
	if !lead {
		s.errorJSON(w, errors.New("forbidden"), http.StatusForbidden)
		return false
	}
	return true
}

// handleGetMyTeam returns the caller's team, or null.
func (s *Server) handleGetMyTeam(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	team, err := s.db.GetTeamForUser(r.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, envelope{"team": nil})
		return
	}
	if err != nil {
		s.serverError(w, r, "load_team", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"team": team})
}

type createTeamPayload struct {
	Name string `json:"name" validate:"required,max=80"`
}

// handleCreateTeam creates a pending team owned by the caller. The name must
// pass the banned-name filter.
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	var payload createTeamPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(payload.Name)

	result, err := s.matcher.Check(r.Context(), name)
	if errors.Is(err, namefilter.ErrEmptyName) {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if err != nil {
		s.serverError(w, r, "check_team_name", err)
		return
	}
	if result.Blocked {
		s.writeJSON(w, http.StatusUnprocessableEntity, envelope{"error": "team name is not allowed", "reason": result.Reason})
		return
	}

	var team *database.Team
	err = s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		team, err = s.db.CreateTeam(r.Context(), tx, name)
		if err != nil {
			return err
		}
		if _, err := s.db.AddTeamMember(r.Context(), tx, team.ID, userID, database.RoleOwner); err != nil {
			return err
		}
		return s.db.LogActivity(r.Context(), tx, team.ID, userID, database.ActivityCreateTeam, ratelimit.ClientIP(r))
	})
	if err != nil {
		s.serverError(w, r, "create_team", err)
		return
	}

	logging.Event("team_created", map[string]interface{}{"team_id": team.ID, "user_id": userID})
	s.writeJSON(w, http.StatusCreated, envelope{"team": team})
}

type addMemberPayload struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Role  string `json:"role" validate:"omitempty,oneof=rider captain"`
}

// handleAddTeamMember adds a rider to the roster. The rider's account is
// found by email, created without a password, or, when no email is given,
// created under a placeholder address.
func (s *Server) handleAddTeamMember(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	teamID, err := teamIDParam(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if !s.requireTeamLead(w, r, teamID, userID) {
		return
	}

	var payload addMemberPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	role := payload.Role
	if role == "" {
		role = database.RoleRider
	}
	name := strings.TrimSpace(payload.Name)
	email := normalizeEmail(payload.Email)
	if email == "" {
		email = uuid.NewString() + "@" + placeholderDomain
	}

	var member *database.TeamMember
	err = s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		rider, err := s.db.GetUserByEmail(r.Context(), tx, email)
		if errors.Is(err, database.ErrNotFound) {
			rider, err = s.db.CreateUser(r.Context(), tx, name, email, "")
		}
		if err != nil {
			return err
		}

		member, err = s.joinTeam(r.Context(), tx, teamID, rider.ID, role)
		if err != nil {
			return err
		}
		return s.db.LogActivity(r.Context(), tx, teamID, userID, database.ActivityAddTeamMember, ratelimit.ClientIP(r))
	})
	if s.rosterError(w, err) {
		return
	}
	if err != nil {
		s.serverError(w, r, "add_team_member", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, envelope{"member": member})
}

type invitePayload struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role" validate:"omitempty,oneof=rider captain"`
}

// handleInviteTeamMember creates an invitation token for an email address.
// Delivering the link is left to the team lead.
func (s *Server) handleInviteTeamMember(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	teamID, err := teamIDParam(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	if !s.requireTeamLead(w, r, teamID, userID) {
		return
	}

	var payload invitePayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	role := payload.Role
	if role == "" {
		role = database.RoleRider
	}

	token, err := auth.RandomToken(24)
	if err != nil {
		s.serverError(w, r, "invite_token", err)
		return
	}

	var inv *database.Invitation
	err = s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		inv, err = s.db.CreateInvitation(r.Context(), tx, teamID, userID, normalizeEmail(payload.Email), role, token)
		if err != nil {
			return err
		}
		return s.db.LogActivity(r.Context(), tx, teamID, userID, database.ActivityInviteTeamMember, ratelimit.ClientIP(r))
	})
	if err != nil {
		s.serverError(w, r, "create_invitation", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, envelope{"ok": true, "token": token, "inviteId": inv.ID})
}

// handleGetTeamStatus returns the readiness summary of the caller's team.
func (s *Server) handleGetTeamStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	status, err := s.readiness.ForUser(r.Context(), userID)
	if err != nil {
		s.serverError(w, r, "team_status", err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleAdminTeamStatus returns the readiness summary of any team.
func (s *Server) handleAdminTeamStatus(w http.ResponseWriter, r *http.Request) {
	teamID, err := teamIDParam(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	status, err := s.readiness.ForTeam(r.Context(), teamID)
	if err != nil {
		s.serverError(w, r, "team_status", err)
		return
	}
	if !status.HasTeam {
		s.errorJSON(w, errors.New("team not found"), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{
		"status":       status,
		"meetsMinimum": status.MeetsMinimum(),
		"paymentOk":    status.PaymentOK(),
	})
}
