package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/schoolhub-core/internal/audit"
	"github.com/nerrad567/schoolhub-core/internal/auth"
)

// handleListAccounts lists students or teachers, optionally filtered with
// ?approved=true|false.
func (s *Server) handleListAccounts(role auth.Role) http.HandlerFunc {
	repo := s.accounts[role].Accounts()
	return func(w http.ResponseWriter, r *http.Request) {
		var approved *bool
		if raw := r.URL.Query().Get("approved"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeBadRequest(w, "approved must be true or false")
				return
			}
			approved = &v
		}

		key := "admin/" + string(role) + "s"
		if approved != nil {
			key += "?approved=" + strconv.FormatBool(*approved)
		}
		s.serveCached(w, r, key, func(ctx context.Context) (any, error) {
			accounts, err := repo.List(ctx)
			if err != nil {
				return nil, err
			}
			if approved == nil {
				return accounts, nil
			}
			filtered := make([]auth.Account, 0, len(accounts))
			for _, a := range accounts {
				if a.Approved == *approved {
					filtered = append(filtered, a)
				}
			}
			return filtered, nil
		})
	}
}

// handleGetAccount returns one account with its grades or subjects.
func (s *Server) handleGetAccount(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		key := "admin/" + string(role) + "s/" + strconv.FormatInt(id, 10)
		s.serveCached(w, r, key, func(ctx context.Context) (any, error) {
			account, err := svc.Profile(ctx, id)
			if err != nil {
				return nil, err
			}
			return s.loadProfile(ctx, account)
		})
	}
}

func (s *Server) handleAdminDeleteAccount(role auth.Role) http.HandlerFunc {
	svc := s.accounts[role]
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteAccount(r.Context(), accountFromContext(r.Context()), id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.invalidate(r.Context(), adminAccountsPattern(role), profileKey(role, id))
		if role == auth.RoleTeacher {
			// Their subjects are unassigned by the foreign key.
			s.invalidate(r.Context(), adminSubjectsPattern)
		}
		writeSuccess(w, http.StatusOK, roleTitle(role)+" deleted successfully!")
	}
}

func (s *Server) handleSetApproval(role auth.Role, approved bool) http.HandlerFunc {
	set := s.school.DisapproveAccount
	detail := roleTitle(role) + " disapproved!"
	if approved {
		set = s.school.ApproveAccount
		detail = roleTitle(role) + " approved!"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := set(r.Context(), role, id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.invalidate(r.Context(), adminAccountsPattern(role), profileKey(role, id))
		writeSuccess(w, http.StatusOK, detail)
	}
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "admin/subjects", func(ctx context.Context) (any, error) {
		return s.school.ListSubjects(ctx)
	})
}

func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s.serveCached(w, r, "admin/subjects/"+strconv.FormatInt(id, 10), func(ctx context.Context) (any, error) {
		return s.school.GetSubject(ctx, id)
	})
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	subject, err := s.school.CreateSubject(r.Context(), req.Name, req.TeacherID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateTeacher(r.Context(), subject.TeacherID)
	writeJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	subject, err := s.school.DeleteSubject(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Grades of the subject went with it.
	s.invalidateTeacher(r.Context(), subject.TeacherID)
	s.invalidate(r.Context(), "student/*", adminAccountsPattern(auth.RoleStudent))
	writeSuccess(w, http.StatusOK, "Subject deleted successfully!")
}

func (s *Server) handleAssignSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	teacherID, ok := pathID(w, r, "teacher_id")
	if !ok {
		return
	}

	subject, err := s.school.AssignSubjectToTeacher(r.Context(), id, teacherID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateTeacher(r.Context(), subject.TeacherID)
	writeJSON(w, http.StatusOK, subject)
}

// handleListAudit pages through the audit trail. Query parameters action,
// entity_type, entity_id, actor, limit and offset narrow the result.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Actor:      q.Get("actor"),
	}
	var err error
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil || filter.Limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if filter.Offset, err = strconv.Atoi(raw); err != nil || filter.Offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
	}

	page, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
