package school

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/events"
)

// Deps holds the collaborators of a Service.
type Deps struct {
	Repo     Repository
	Students auth.AccountRepository
	Teachers auth.AccountRepository
	Events   *events.Bus // optional
	Logger   *slog.Logger
}

// Service implements the subject, grade and approval operations.
type Service struct {
	repo     Repository
	accounts map[auth.Role]auth.AccountRepository
	events   *events.Bus
	logger   *slog.Logger
}

// NewService creates the school service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo: deps.Repo,
		accounts: map[auth.Role]auth.AccountRepository{
			auth.RoleStudent: deps.Students,
			auth.RoleTeacher: deps.Teachers,
		},
		events: deps.Events,
		logger: logger,
	}
}

// NormalizeSubject upper-cases and trims a subject name.
func NormalizeSubject(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// CreateSubject creates a subject, optionally already assigned to a teacher.
func (s *Service) CreateSubject(ctx context.Context, name string, teacherID *int64) (*Subject, error) {
	subject := &Subject{Name: NormalizeSubject(name), TeacherID: teacherID}
	if err := s.repo.CreateSubject(ctx, subject); err != nil {
		return nil, err
	}

	s.logger.Info("subject created", "subject", subject.Name, "subject_id", subject.ID)
	s.publish(ctx, events.TypeSubjectCreated, "subject", subject.ID, map[string]any{"name": subject.Name})
	return subject, nil
}

// ListSubjects returns every subject.
func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return s.repo.ListSubjects(ctx)
}

// GetSubject returns one subject.
func (s *Service) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	return s.repo.GetSubject(ctx, id)
}

// DeleteSubject deletes a subject together with its grades.
func (s *Service) DeleteSubject(ctx context.Context, id int64) (*Subject, error) {
	subject, err := s.repo.GetSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteSubject(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("subject deleted", "subject", subject.Name, "subject_id", id)
	s.publish(ctx, events.TypeSubjectDeleted, "subject", id, map[string]any{"name": subject.Name})
	return subject, nil
}

// AssignSubjectToTeacher assigns an unassigned subject to a teacher.
// It fails with ErrNotFound when either is missing and ErrSubjectAssigned
// when the subject already has a teacher.
func (s *Service) AssignSubjectToTeacher(ctx context.Context, subjectID, teacherID int64) (*Subject, error) {
	if err := s.repo.AssignTeacher(ctx, subjectID, teacherID); err != nil {
		return nil, err
	}

	subject, err := s.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("subject assigned", "subject", subject.Name, "teacher_id", teacherID)
	s.publish(ctx, events.TypeSubjectAssigned, "subject", subjectID, map[string]any{
		"name":       subject.Name,
		"teacher_id": teacherID,
	})
	return subject, nil
}

// TeacherSubjects lists the subjects assigned to a teacher.
func (s *Service) TeacherSubjects(ctx context.Context, teacherID int64) ([]Subject, error) {
	return s.repo.SubjectsByTeacher(ctx, teacherID)
}

// StudentGrades lists a student's grades.
func (s *Service) StudentGrades(ctx context.Context, studentID int64) ([]Grade, error) {
	return s.repo.GradesByStudent(ctx, studentID)
}

// RecordGrade records a grade given by teacher. The teacher must be
// assigned to the subject (ErrNotTeaching) and the (subject, student,
// number) triple must be new (ErrDuplicateGrade).
func (s *Service) RecordGrade(ctx context.Context, teacher *auth.Account, in GradeInput) (*Grade, error) {
	subject, err := s.taughtSubject(ctx, teacher, in.Subject)
	if err != nil {
		return nil, err
	}

	grade := &Grade{
		StudentID: in.StudentID,
		SubjectID: subject.ID,
		Subject:   subject.Name,
		Number:    in.Number,
		Value:     in.Value,
	}
	if err := s.repo.CreateGrade(ctx, grade); err != nil {
		return nil, err
	}

	s.logger.Info("grade recorded",
		"teacher_id", teacher.ID, "student_id", grade.StudentID,
		"subject", grade.Subject, "number", grade.Number,
	)
	s.publishGrade(ctx, events.TypeGradeRecorded, teacher, grade)
	return grade, nil
}

// EditGrade changes a grade's value and optionally its number. A grade in
// a subject the teacher doesn't teach is reported as ErrNotFound.
func (s *Service) EditGrade(ctx context.Context, teacher *auth.Account, edit GradeEdit) (*Grade, error) {
	subject, err := s.taughtSubject(ctx, teacher, edit.Subject)
	if err != nil {
		if errors.Is(err, ErrNotTeaching) {
			return nil, fmt.Errorf("%w: grade", ErrNotFound)
		}
		return nil, err
	}

	current, err := s.repo.GetGrade(ctx, subject.ID, edit.StudentID, edit.Number)
	if err != nil {
		return nil, err
	}

	number, value := current.Number, current.Value
	if edit.NewNumber != nil {
		number = *edit.NewNumber
	}
	if edit.Value != nil {
		value = *edit.Value
	}

	if err := s.repo.UpdateGrade(ctx, subject.ID, edit.StudentID, edit.Number, number, value); err != nil {
		return nil, err
	}

	grade, err := s.repo.GetGrade(ctx, subject.ID, edit.StudentID, number)
	if err != nil {
		return nil, err
	}

	s.publishGrade(ctx, events.TypeGradeEdited, teacher, grade)
	return grade, nil
}

// DeleteGrade deletes a grade in a subject the teacher teaches.
func (s *Service) DeleteGrade(ctx context.Context, teacher *auth.Account, key GradeKey) error {
	subject, err := s.taughtSubject(ctx, teacher, key.Subject)
	if err != nil {
		if errors.Is(err, ErrNotTeaching) {
			return fmt.Errorf("%w: grade", ErrNotFound)
		}
		return err
	}

	if err := s.repo.DeleteGrade(ctx, subject.ID, key.StudentID, key.Number); err != nil {
		return err
	}

	s.publishGrade(ctx, events.TypeGradeDeleted, teacher, &Grade{
		StudentID: key.StudentID,
		SubjectID: subject.ID,
		Subject:   subject.Name,
		Number:    key.Number,
	})
	return nil
}

// ApproveAccount sets approved=true on a student or teacher.
func (s *Service) ApproveAccount(ctx context.Context, role auth.Role, id int64) error {
	return s.setApproved(ctx, role, id, true)
}

// DisapproveAccount sets approved=false on a student or teacher.
func (s *Service) DisapproveAccount(ctx context.Context, role auth.Role, id int64) error {
	return s.setApproved(ctx, role, id, false)
}

func (s *Service) setApproved(ctx context.Context, role auth.Role, id int64, approved bool) error {
	repo, ok := s.accounts[role]
	if !ok || repo == nil {
		return fmt.Errorf("%w: %s accounts have no approval flag", auth.ErrInvalidRole, role)
	}

	changed, err := repo.SetApproved(ctx, id, approved)
	if err != nil {
		return err
	}
	if !changed {
		return ErrAlreadyInState
	}

	typ := events.TypeAccountApproved
	if !approved {
		typ = events.TypeAccountDisapproved
	}
	s.logger.Info("account approval changed", "role", string(role), "account_id", id, "approved", approved)
	s.publish(ctx, typ, string(role), id, nil)
	return nil
}

// taughtSubject resolves a subject name and checks the teacher owns it.
func (s *Service) taughtSubject(ctx context.Context, teacher *auth.Account, name string) (*Subject, error) {
	if teacher == nil || teacher.Role != auth.RoleTeacher {
		return nil, auth.ErrForbidden
	}

	subject, err := s.repo.GetSubjectByName(ctx, NormalizeSubject(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotTeaching
		}
		return nil, err
	}
	if subject.TeacherID == nil || *subject.TeacherID != teacher.ID {
		return nil, ErrNotTeaching
	}
	return subject, nil
}

func (s *Service) publishGrade(ctx context.Context, typ events.Type, teacher *auth.Account, g *Grade) {
	s.events.Publish(ctx, events.Event{
		Type:     typ,
		Role:     string(auth.RoleStudent),
		EntityID: g.StudentID,
		Actor:    teacher.Email,
		Details: map[string]any{
			"subject":    g.Subject,
			"number":     g.Number,
			"value":      g.Value,
			"teacher_id": teacher.ID,
		},
	})
}

func (s *Service) publish(ctx context.Context, typ events.Type, role string, id int64, details map[string]any) {
	s.events.Publish(ctx, events.Event{Type: typ, Role: role, EntityID: id, Details: details})
}
