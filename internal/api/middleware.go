package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/neadvenduro/advenduro/internal/auth"
	"github.com/neadvenduro/advenduro/internal/database"
)

// contextKey is a custom type used for keys in context.Context.
type contextKey string

const (
	// userContextKey holds the authenticated user's ID.
	userContextKey = contextKey("userID")
	// adminContextKey holds the *database.User loaded by requireAdmin.
	adminContextKey = contextKey("admin")
)

// authMiddleware requires a valid session token, taken from the
// "Authorization: Bearer" header or, for EventSource connections that cannot
// set headers, from the "token" query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""
		if scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
			tokenString = strings.TrimSpace(value)
		}
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			s.errorJSON(w, errors.New("authorization token is required"), http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateJWT(tokenString, s.config.JwtSecret)
		if err != nil {
			s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin lets only administrators through. It must run after
// authMiddleware. The role is read from the database on every request.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.currentUser(r)
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
			return
		}
		if err != nil {
			s.serverError(w, r, "load_user", err)
			return
		}
		if !user.IsAdmin() {
			s.errorJSON(w, errors.New("forbidden"), http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), adminContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getUserIDFromContext returns the ID stored by authMiddleware.
func (s *Server) getUserIDFromContext(r *http.Request) (int64, error) {
	userID, ok := r.Context().Value(userContextKey).(int64)
	if !ok {
		return 0, errors.New("could not retrieve user ID from context")
	}
	return userID, nil
}

// currentUser loads the authenticated user. It returns database.ErrNotFound
// when the account behind a valid token no longer exists.
func (s *Server) currentUser(r *http.Request) (*database.User, error) {
	if u, ok := r.Context().Value(adminContextKey).(*database.User); ok {
		return u, nil
	}
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		return nil, err
	}
	return s.db.GetUserByID(r.Context(), s.db.DB(), userID)
}

// mustUser is currentUser for handlers: it writes the error response itself
// and returns nil when the request cannot continue.
func (s *Server) mustUser(w http.ResponseWriter, r *http.Request) *database.User {
	user, err := s.currentUser(r)
	if errors.Is(err, database.ErrNotFound) {
		s.errorJSON(w, errors.New("user not found"), http.StatusUnauthorized)
		return nil
	}
	if err != nil {
		s.serverError(w, r, "load_user", err)
		return nil
	}
	return user
}

// logFormatter adapts chi's request logger to logrus.
type logFormatter struct {
	logger *logrus.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": r.RemoteAddr,
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields["request_id"] = reqID
	}
	return &logEntry{entry: f.logger.WithFields(fields)}
}

type logEntry struct {
	entry *logrus.Entry
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	entry := e.entry.WithFields(logrus.Fields{
		"status":     status,
		"bytes":      bytes,
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
	})
	switch {
	case status >= 500:
		entry.Error("request completed")
	case status >= 400:
		entry.Warn("request completed")
	default:
		entry.Info("request completed")
	}
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.entry.WithFields(logrus.Fields{
		"panic": fmt.Sprintf("%+v", v),
		"stack": string(stack),
	}).Error("request panicked")
}
