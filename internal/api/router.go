package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/schoolhub-core/internal/auth"
)

// healthCheckTimeout bounds each backend check made by /health.
const healthCheckTimeout = 2 * time.Second

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/student", func(r chi.Router) {
		s.mountAccountRoutes(r, auth.RoleStudent)
		r.With(s.requireRole(auth.RoleStudent)).Get("/grades", s.handleStudentGrades)
	})

	r.Route("/teacher", func(r chi.Router) {
		s.mountAccountRoutes(r, auth.RoleTeacher)
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleTeacher))
			r.Get("/subjects", s.handleTeacherSubjects)
			r.Route("/grade/{student_id}", func(r chi.Router) {
				r.Post("/", s.handleRecordGrade)
				r.Patch("/", s.handleEditGrade)
				r.Delete("/", s.handleDeleteGrade)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		s.mountAccountRoutes(r, auth.RoleAdmin)

		// The live feed authenticates with a query parameter, since browsers
		// cannot set headers on websocket requests.
		if s.hub != nil {
			r.Get("/events", s.handleEvents)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleAdmin))

			for _, role := range []auth.Role{auth.RoleStudent, auth.RoleTeacher} {
				r.Route("/"+string(role)+"s", func(r chi.Router) {
					r.Get("/", s.handleListAccounts(role))
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetAccount(role))
						r.Delete("/", s.handleAdminDeleteAccount(role))
						r.Post("/approve", s.handleSetApproval(role, true))
						r.Post("/disapprove", s.handleSetApproval(role, false))
					})
				})
			}

			r.Route("/subjects", func(r chi.Router) {
				r.Get("/", s.handleListSubjects)
				r.Post("/", s.handleCreateSubject)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSubject)
					r.Delete("/", s.handleDeleteSubject)
					r.Post("/teacher/{teacher_id}", s.handleAssignSubject)
				})
			})

			r.Get("/audit", s.handleListAudit)
			r.Get("/system", s.handleSystemMetrics)
		})
	})

	return r
}

// mountAccountRoutes registers the account lifecycle endpoints every role has.
func (s *Server) mountAccountRoutes(r chi.Router, role auth.Role) {
	if role == auth.RoleAdmin {
		// Only an existing admin may create another one.
		r.With(s.requireRole(auth.RoleAdmin)).Post("/signin", s.handleSignUp(role))
	} else {
		r.Post("/signin", s.handleSignUp(role))
	}
	r.With(s.loginRateLimit).Post("/login", s.handleLogin(role))
	r.Post("/refresh", s.handleRefresh(role))
	r.Post("/change-password", s.handleChangePassword(role))
	r.Post("/resetpassword", s.handleRequestReset(role))
	r.Post("/password-resetting/{reset_token}", s.handleConfirmReset(role))

	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(role))
		r.Get("/me", s.handleGetProfile(role))
		r.Patch("/me", s.handleUpdateProfile(role))
		r.Delete("/me", s.handleDeleteSelf(role))
	})
}

// handleHealth reports overall status plus one entry per backend.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string, len(s.health))
	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
