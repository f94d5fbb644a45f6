package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/school"
)

// roleTitle is "Student", "Teacher" or "Admin" for messages.
func roleTitle(role auth.Role) string {
	s := string(role)
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Server) handleSignUp(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		var req signUpRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if msg := req.missingIdentity(role); msg != "" {
			writeValidationError(w, msg)
			return
		}

		if _, err := svc.SignUp(r.Context(), req.input(role)); err != nil {
			if errors.Is(err, auth.ErrAlreadyExists) {
				writeValidationError(w, roleTitle(role)+" already exists!")
				return
			}
			s.writeServiceError(w, r, err)
			return
		}

		s.invalidate(r.Context(), adminAccountsPattern(role))
		detail := roleTitle(role) + " created successfully!"
		if role.RequiresApproval() {
			detail += " Waiting for approval."
		}
		writeSuccess(w, http.StatusCreated, detail)
	}
}

// handleLogin answers every credential problem with the same 400 so the
// response does not reveal which accounts exist.
func (s *Server) handleLogin(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		pair, err := svc.Login(r.Context(), auth.LoginInput{Login: req.login(role), Password: req.Password})
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, pair)
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msgBadCredentials)
		case errors.Is(err, auth.ErrNotApproved):
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msgNotApproved)
		default:
			s.writeServiceError(w, r, err)
		}
	}
}

// handleRefresh exchanges the bearer refresh token for a new pair.
func (s *Server) handleRefresh(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		pair, err := svc.Refresh(r.Context(), bearerToken(r))
		if err != nil {
			writeTokenError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) handleChangePassword(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		var req passwordRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if err := svc.ChangePassword(r.Context(), bearerToken(r), req.Password); err != nil {
			writeTokenError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Password changed successfully!")
	}
}

// writeTokenError answers refresh-token failures. They are all 401; only the
// message varies.
func writeTokenError(w http.ResponseWriter, err error) {
	msg := auth.ErrUnauthenticated.Error()
	switch {
	case errors.Is(err, auth.ErrStaleToken):
		msg = auth.ErrStaleToken.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		msg = auth.ErrInvalidCredentials.Error()
	}
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeUnauthorized(w, msg)
}

// handleRequestReset takes the email from the JSON body or the email query
// parameter.
func (s *Server) handleRequestReset(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if email := r.URL.Query().Get("email"); email != "" {
			req.Email = email
			req.normalize()
			if err := validate.Struct(&req); err != nil {
				writeValidationError(w, validationMessage(err))
				return
			}
		} else if !decodeAndValidate(w, r, &req) {
			return
		}

		if err := svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				writeNotFound(w, roleTitle(role)+" doesn't exist!")
				return
			}
			s.writeServiceError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Password reset link sent to your email!")
	}
}

func (s *Server) handleConfirmReset(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		var req passwordRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if err := svc.ConfirmPasswordReset(r.Context(), chi.URLParam(r, "reset_token"), req.Password); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Password reset successfully!")
	}
}

// profileResponse is an account plus the role-specific collections.
type profileResponse struct {
	*auth.Account
	Grades   []school.Grade   `json:"grades,omitempty"`
	Subjects []school.Subject `json:"subjects,omitempty"`
}

// loadProfile builds the profile document of account.
func (s *Server) loadProfile(ctx context.Context, account *auth.Account) (*profileResponse, error) {
	resp := &profileResponse{Account: account}
	var err error
	switch account.Role {
	case auth.RoleStudent:
		resp.Grades, err = s.school.StudentGrades(ctx, account.ID)
	case auth.RoleTeacher:
		resp.Subjects, err = s.school.TeacherSubjects(ctx, account.ID)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Server) handleGetProfile(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := accountFromContext(r.Context())
		s.serveCached(w, r, profileKey(role, account.ID), func(ctx context.Context) (any, error) {
			return s.loadProfile(ctx, account)
		})
	}
}

func (s *Server) handleUpdateProfile(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		account := accountFromContext(r.Context())

		var req profileRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		updated, err := svc.UpdateProfile(r.Context(), account.ID, req.update(role))
		if err != nil {
			if errors.Is(err, auth.ErrAlreadyExists) {
				writeError(w, http.StatusConflict, ErrCodeConflict, "Email or username already in use!")
				return
			}
			s.writeServiceError(w, r, err)
			return
		}

		s.invalidate(r.Context(), profileKey(role, account.ID), adminAccountsPattern(role))
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) handleDeleteSelf(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		account := accountFromContext(r.Context())
		if err := svc.DeleteAccount(r.Context(), account, 0); err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.invalidate(r.Context(), profileKey(role, account.ID), adminAccountsPattern(role))
		writeSuccess(w, http.StatusOK, roleTitle(role)+" deleted successfully!")
	}
}
