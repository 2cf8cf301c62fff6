package api

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	googleOauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/neadvenduro/advenduro/internal/auth"
	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/logging"
)

type registerUserPayload struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginUserPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// normalizeEmail is applied to every email before it reaches the database.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// handleRegisterUser creates a member account with an email and password.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var payload registerUserPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	email := normalizeEmail(payload.Email)

	hashedPassword, err := auth.HashPassword(payload.Password)
	if err != nil {
		s.serverError(w, r, "hash_password", err)
		return
	}

	var user *database.User
	err = s.db.WriteTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		user, err = s.db.CreateUser(r.Context(), tx, strings.TrimSpace(payload.Name), email, hashedPassword)
		return err
	})
	if database.IsUniqueViolation(err) {
		s.errorJSON(w, errors.New("a user with this email address already exists"), http.StatusConflict)
		return
	}
	if err != nil {
		s.serverError(w, r, "create_user", err)
		return
	}

	logging.Event("user_registered", map[string]interface{}{"user_id": user.ID})
	s.writeJSON(w, http.StatusCreated, envelope{"user": toUserResponse(user)})
}

// handleLoginUser exchanges an email and password for a session token.
func (s *Server) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var payload loginUserPayload
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByEmail(r.Context(), s.db.DB(), normalizeEmail(payload.Email))
	if errors.Is(err, database.ErrNotFound) {
		s.errorJSON(w, errors.New("invalid email or password"), http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.serverError(w, r, "load_user", err)
		return
	}

	// Placeholder riders and Google accounts have no password.
	if !user.PasswordHash.Valid || user.PasswordHash.String == "" {
		s.errorJSON(w, errors.New("please log in using the method you signed up with"), http.StatusUnauthorized)
		return
	}
	if !auth.CheckPasswordHash(payload.Password, user.PasswordHash.String) {
		s.errorJSON(w, errors.New("invalid email or password"), http.StatusUnauthorized)
		return
	}

	s.respondWithSession(w, r, http.StatusOK, user)
}

func (s *Server) respondWithSession(w http.ResponseWriter, r *http.Request, status int, user *database.User) {
	token, err := auth.GenerateJWT(user.ID, s.config.JwtSecret)
	if err != nil {
		s.serverError(w, r, "generate_token", err)
		return
	}
	s.writeJSON(w, status, envelope{"token": token, "user": toUserResponse(user)})
}

// --- Google OAuth ---

const oauthStateCookie = "oauthstate"

func (s *Server) setStateCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// handleGoogleLogin redirects to Google's consent page.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.errorJSON(w, errors.New("google login is not enabled"), http.StatusNotFound)
		return
	}
	state, err := s.setStateCookie(w)
	if err != nil {
		s.serverError(w, r, "oauth_state", err)
		return
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleGoogleCallback finishes the OAuth flow, creating the account on the
// first login, and hands the session token to the frontend.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.errorJSON(w, errors.New("google login is not enabled"), http.StatusNotFound)
		return
	}
	ctx := r.Context()

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.FormValue("state") != stateCookie.Value {
		s.errorJSON(w, errors.New("invalid oauth state"), http.StatusUnauthorized)
		return
	}

	token, err := s.oauth.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		s.errorJSON(w, errors.New("failed to exchange code for token"), http.StatusUnauthorized)
		return
	}

	svc, err := googleOauth2.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		s.serverError(w, r, "oauth_service", err)
		return
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		s.serverError(w, r, "oauth_userinfo", err)
		return
	}
	if info.Email == "" || (info.VerifiedEmail != nil && !*info.VerifiedEmail) {
		s.errorJSON(w, errors.New("google account has no verified email"), http.StatusUnauthorized)
		return
	}
	email := normalizeEmail(info.Email)

	var user *database.User
	err = s.db.WriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = s.db.GetUserByEmail(ctx, tx, email)
		if errors.Is(err, database.ErrNotFound) {
			user, err = s.db.CreateUser(ctx, tx, info.Name, email, "")
		}
		return err
	})
	if err != nil {
		s.serverError(w, r, "oauth_upsert_user", err)
		return
	}

	appToken, err := auth.GenerateJWT(user.ID, s.config.JwtSecret)
	if err != nil {
		s.serverError(w, r, "generate_token", err)
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/callback?token=%s", strings.TrimRight(s.config.FrontendURL, "/"), url.QueryEscape(appToken))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
