package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/neadvenduro/advenduro/internal/ratelimit"
)

// RegisterRoutes sets up all the API endpoints and middleware for the application.
func (s *Server) RegisterRoutes(r *chi.Mux) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&logFormatter{logger: logrus.StandardLogger()}))
	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", s.config.FrontendURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		// Public routes
		r.Post("/users/register", s.handleRegisterUser)
		r.Post("/users/login", s.handleLoginUser)
		r.Get("/auth/google/login", s.handleGoogleLogin)
		r.Get("/auth/google/callback", s.handleGoogleCallback)
		r.Post("/invitations/accept", s.handleAcceptInvitation)
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(ratelimit.Middleware(s.limiter, nil))
			}
			r.Post("/banned-names/check", s.handleCheckName)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/notifications/stream", s.handleSSE)

			r.Get("/users/me", s.handleGetMyProfile)
			r.Patch("/users/me", s.handleUpdateMyProfile)

			r.Get("/teams", s.handleGetMyTeam)
			r.Post("/teams", s.handleCreateTeam)
			r.Post("/teams/{teamID}/members", s.handleAddTeamMember)
			r.Post("/teams/{teamID}/invite", s.handleInviteTeamMember)
			r.Get("/team/status", s.handleGetTeamStatus)

			r.Post("/uploads/presign", s.handlePresignUpload)
			r.Post("/documents", s.handleCreateDocument)
			r.Post("/payments/upi", s.handleSubmitUPIPayment)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/documents", s.handleAdminListDocuments)
				r.Patch("/documents", s.handleAdminReviewDocument)
				r.Get("/payments", s.handleAdminListPayments)
				r.Patch("/payments", s.handleAdminReviewPayment)
				r.Get("/banned-names", s.handleAdminListBannedNames)
				r.Post("/banned-names/import", s.handleAdminImportBannedNames)
				r.Post("/s3/get-url", s.handleAdminGetObjectURL)
				r.Get("/teams/{teamID}/status", s.handleAdminTeamStatus)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DB().PingContext(r.Context()); err != nil {
		s.errorJSON(w, err, http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}
