package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/neadvenduro/advenduro/internal/config"
	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/logging"
	"github.com/neadvenduro/advenduro/internal/namefilter"
	"github.com/neadvenduro/advenduro/internal/notify"
	"github.com/neadvenduro/advenduro/internal/ratelimit"
	"github.com/neadvenduro/advenduro/internal/readiness"
	"github.com/neadvenduro/advenduro/internal/realtime"
	"github.com/neadvenduro/advenduro/internal/storage"
)

// Presigner issues presigned object storage URLs. It is nil when no bucket
// is configured, in which case the upload endpoints answer 503.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (*storage.PresignedRequest, error)
	PresignGet(ctx context.Context, key string) (*storage.PresignedRequest, error)
}

// Server holds every dependency of the HTTP handlers.
type Server struct {
	config    *config.Config
	db        *database.Service
	matcher   *namefilter.Matcher
	importer  *namefilter.Importer
	readiness *readiness.Aggregator
	presigner Presigner
	broker    *realtime.Broker
	notifier  *notify.Hub
	limiter   ratelimit.Limiter
	oauth     *oauth2.Config
	validate  *validator.Validate
}

// NewServer wires the handlers to their dependencies. presigner may be nil.
// The name filter and readiness components are built on top of db.
func NewServer(cfg *config.Config, db *database.Service, presigner Presigner, broker *realtime.Broker, notifier *notify.Hub, limiter ratelimit.Limiter) *Server {
	s := &Server{
		config:    cfg,
		db:        db,
		matcher:   namefilter.NewMatcher(db),
		importer:  namefilter.NewImporter(db),
		readiness: readiness.NewAggregator(db),
		presigner: presigner,
		broker:    broker,
		notifier:  notifier,
		limiter:   limiter,
		validate:  newValidator(),
	}
	if cfg.GoogleLoginEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleOauthClientID,
			ClientSecret: cfg.GoogleOauthClientSecret,
			RedirectURL:  cfg.GoogleOauthRedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

// envelope wraps JSON responses, e.g. envelope{"user": u}.
type envelope map[string]interface{}

// writeJSON marshals data and writes it with the given status and any extra
// headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}, headers ...http.Header) {
	js, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).Error("could not marshal response")
		http.Error(w, "Internal Server Error: Failed to marshal JSON", http.StatusInternalServerError)
		return
	}

	if len(headers) > 0 {
		for key, value := range headers[0] {
			w.Header()[key] = value
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}

// errorJSON writes {"error": "..."} with the given status, 500 by default.
func (s *Server) errorJSON(w http.ResponseWriter, err error, status ...int) {
	statusCode := http.StatusInternalServerError
	if len(status) > 0 {
		statusCode = status[0]
	}
	s.writeJSON(w, statusCode, envelope{"error": err.Error()})
}

// serverError logs and reports an unexpected failure and answers 500 without
// leaking its details.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, errorType string, err error) {
	fields := logrus.Fields{"method": r.Method, "path": r.URL.Path}
	if userID, ok := r.Context().Value(userContextKey).(int64); ok {
		fields["user_id"] = userID
	}
	logging.Error(errorType, err, fields)
	s.errorJSON(w, errors.New("internal server error"), http.StatusInternalServerError)
}

const maxBodyBytes = 1 << 20

// readJSON decodes the request body into dst and validates it with the
// struct's `validate` tags. The returned error is safe to show to clients.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must not be empty")
		}
		return errors.New("bad request: could not decode JSON")
	}
	return s.validateStruct(dst)
}

// validateStruct turns validator errors into one readable message.
func (s *Server) validateStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
