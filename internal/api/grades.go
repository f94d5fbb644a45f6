package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/school"
)

// pathID parses the named URL parameter as a positive ID, writing a 400
// when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *Server) handleStudentGrades(w http.ResponseWriter, r *http.Request) {
	student := accountFromContext(r.Context())
	s.serveCached(w, r, gradesKey(student.ID), func(ctx context.Context) (any, error) {
		return s.school.StudentGrades(ctx, student.ID)
	})
}

func (s *Server) handleTeacherSubjects(w http.ResponseWriter, r *http.Request) {
	teacher := accountFromContext(r.Context())
	s.serveCached(w, r, teacherSubjectsKey(teacher.ID), func(ctx context.Context) (any, error) {
		return s.school.TeacherSubjects(ctx, teacher.ID)
	})
}

func (s *Server) handleRecordGrade(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(w, r, "student_id")
	if !ok {
		return
	}
	var req gradeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeValidationError(w, fieldMessages["value"])
		return
	}

	in := school.GradeInput{GradeKey: req.key(studentID), Value: *req.Value}
	grade, err := s.school.RecordGrade(r.Context(), accountFromContext(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateStudent(r.Context(), studentID)
	writeJSON(w, http.StatusCreated, grade)
}

func (s *Server) handleEditGrade(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(w, r, "student_id")
	if !ok {
		return
	}
	var req gradeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	edit := school.GradeEdit{GradeKey: req.key(studentID), NewNumber: req.NewNumber, Value: req.Value}
	grade, err := s.school.EditGrade(r.Context(), accountFromContext(r.Context()), edit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateStudent(r.Context(), studentID)
	writeJSON(w, http.StatusOK, grade)
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(w, r, "student_id")
	if !ok {
		return
	}
	var req gradeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.school.DeleteGrade(r.Context(), accountFromContext(r.Context()), req.key(studentID)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateStudent(r.Context(), studentID)
	writeSuccess(w, http.StatusOK, "Grade deleted successfully!")
}

// invalidateStudent drops every cached view that includes a student's grades.
func (s *Server) invalidateStudent(ctx context.Context, studentID int64) {
	s.invalidate(ctx,
		gradesKey(studentID),
		profileKey(auth.RoleStudent, studentID),
		adminAccountsPattern(auth.RoleStudent),
	)
}

// invalidateTeacher drops every cached view that includes a teacher's subjects.
func (s *Server) invalidateTeacher(ctx context.Context, teacherID *int64) {
	patterns := []string{adminSubjectsPattern}
	if teacherID != nil {
		patterns = append(patterns,
			teacherSubjectsKey(*teacherID),
			profileKey(auth.RoleTeacher, *teacherID),
			adminAccountsPattern(auth.RoleTeacher),
		)
	}
	s.invalidate(ctx, patterns...)
}
