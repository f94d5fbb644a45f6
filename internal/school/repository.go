package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository persists subjects and grades.
type Repository interface {
	CreateSubject(ctx context.Context, subject *Subject) error
	GetSubject(ctx context.Context, id int64) (*Subject, error)
	GetSubjectByName(ctx context.Context, name string) (*Subject, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	DeleteSubject(ctx context.Context, id int64) error
	AssignTeacher(ctx context.Context, subjectID, teacherID int64) error
	SubjectsByTeacher(ctx context.Context, teacherID int64) ([]Subject, error)

	CreateGrade(ctx context.Context, grade *Grade) error
	GetGrade(ctx context.Context, subjectID, studentID int64, number int) (*Grade, error)
	UpdateGrade(ctx context.Context, subjectID, studentID int64, number int, newNumber int, value float64) error
	DeleteGrade(ctx context.Context, subjectID, studentID int64, number int) error
	GradesByStudent(ctx context.Context, studentID int64) ([]Grade, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a SQLite-backed subject and grade repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const subjectColumns = "id, name, teacher_id, created_at"

const gradeColumns = `g.id, g.student_id, g.subject_id, s.name, g.number, g.value, g.created_at, g.updated_at`

// CreateSubject inserts a subject and fills in its ID.
func (r *SQLiteRepository) CreateSubject(ctx context.Context, subject *Subject) error {
	if subject.TeacherID != nil {
		if err := r.requireRow(ctx, "teachers", *subject.TeacherID); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO subjects (name, teacher_id, created_at) VALUES (?, ?, ?)",
		subject.Name, nullInt64(subject.TeacherID), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSubjectExists
		}
		return fmt.Errorf("creating subject: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading subject id: %w", err)
	}
	subject.ID = id
	subject.CreatedAt = now
	return nil
}

// GetSubject retrieves a subject by ID.
func (r *SQLiteRepository) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	return scanSubject(r.db.QueryRowContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE id = ?", id))
}

// GetSubjectByName retrieves a subject by its (upper-cased) name.
func (r *SQLiteRepository) GetSubjectByName(ctx context.Context, name string) (*Subject, error) {
	return scanSubject(r.db.QueryRowContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE name = ?", name))
}

// ListSubjects returns all subjects ordered by name.
func (r *SQLiteRepository) ListSubjects(ctx context.Context) ([]Subject, error) {
	return r.querySubjects(ctx, "SELECT "+subjectColumns+" FROM subjects ORDER BY name ASC")
}

// SubjectsByTeacher returns the subjects assigned to a teacher.
func (r *SQLiteRepository) SubjectsByTeacher(ctx context.Context, teacherID int64) ([]Subject, error) {
	return r.querySubjects(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE teacher_id = ? ORDER BY name ASC", teacherID)
}

// DeleteSubject removes a subject and, by cascade, its grades.
func (r *SQLiteRepository) DeleteSubject(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting subject: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrNotFound
	}
	return nil
}

// AssignTeacher sets the teacher of an unassigned subject.
func (r *SQLiteRepository) AssignTeacher(ctx context.Context, subjectID, teacherID int64) error {
	if err := r.requireRow(ctx, "teachers", teacherID); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE subjects SET teacher_id = ? WHERE id = ? AND teacher_id IS NULL", teacherID, subjectID)
	if err != nil {
		return fmt.Errorf("assigning subject: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 { //nolint:errcheck // always succeeds on SQLite
		return nil
	}

	if _, err := r.GetSubject(ctx, subjectID); err != nil {
		return err
	}
	return ErrSubjectAssigned
}

// CreateGrade inserts a grade. The student must exist.
func (r *SQLiteRepository) CreateGrade(ctx context.Context, grade *Grade) error {
	if err := r.requireRow(ctx, "students", grade.StudentID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	stamp := now.Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO grades (student_id, subject_id, number, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		grade.StudentID, grade.SubjectID, grade.Number, grade.Value, stamp, stamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateGrade
		}
		return fmt.Errorf("creating grade: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading grade id: %w", err)
	}
	grade.ID = id
	grade.CreatedAt = now
	grade.UpdatedAt = now
	return nil
}

// GetGrade retrieves a grade by its unique triple.
func (r *SQLiteRepository) GetGrade(ctx context.Context, subjectID, studentID int64, number int) (*Grade, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+gradeColumns+` FROM grades g JOIN subjects s ON s.id = g.subject_id
		 WHERE g.subject_id = ? AND g.student_id = ? AND g.number = ?`,
		subjectID, studentID, number,
	)
	return scanGrade(row)
}

// UpdateGrade changes the number and value of the grade at the given triple.
func (r *SQLiteRepository) UpdateGrade(ctx context.Context, subjectID, studentID int64, number, newNumber int, value float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE grades SET number = ?, value = ?, updated_at = ?
		 WHERE subject_id = ? AND student_id = ? AND number = ?`,
		newNumber, value, time.Now().UTC().Format(time.RFC3339), subjectID, studentID, number,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateGrade
		}
		return fmt.Errorf("updating grade: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrNotFound
	}
	return nil
}

// DeleteGrade removes the grade at the given triple.
func (r *SQLiteRepository) DeleteGrade(ctx context.Context, subjectID, studentID int64, number int) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM grades WHERE subject_id = ? AND student_id = ? AND number = ?",
		subjectID, studentID, number,
	)
	if err != nil {
		return fmt.Errorf("deleting grade: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrNotFound
	}
	return nil
}

// GradesByStudent returns a student's grades ordered by subject and number.
func (r *SQLiteRepository) GradesByStudent(ctx context.Context, studentID int64) ([]Grade, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+gradeColumns+` FROM grades g JOIN subjects s ON s.id = g.subject_id
		 WHERE g.student_id = ? ORDER BY s.name ASC, g.number ASC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing grades: %w", err)
	}
	defer rows.Close()

	grades := []Grade{}
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		grades = append(grades, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grades: %w", err)
	}
	return grades, nil
}

func (r *SQLiteRepository) querySubjects(ctx context.Context, query string, args ...any) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	defer rows.Close()

	subjects := []Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subjects: %w", err)
	}
	return subjects, nil
}

// requireRow returns ErrNotFound unless table has a row with id.
func (r *SQLiteRepository) requireRow(ctx context.Context, table string, id int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one) //nolint:gosec // table names are constants
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, strings.TrimSuffix(table, "s"), id)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", table, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubject(s scanner) (*Subject, error) {
	var (
		subject   Subject
		teacherID sql.NullInt64
		createdAt string
	)
	if err := s.Scan(&subject.ID, &subject.Name, &teacherID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning subject: %w", err)
	}
	if teacherID.Valid {
		id := teacherID.Int64
		subject.TeacherID = &id
	}
	subject.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this repository
	return &subject, nil
}

func scanGrade(s scanner) (*Grade, error) {
	var (
		g                    Grade
		createdAt, updatedAt string
	)
	err := s.Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.Subject, &g.Number, &g.Value, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning grade: %w", err)
	}
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this repository
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this repository
	return &g, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
