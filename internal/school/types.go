package school

import "time"

// Subject is a course, optionally taught by one teacher.
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TeacherID *int64    `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Grade is one mark of a student in a subject. Number is the slot or attempt
// index; (SubjectID, StudentID, Number) is unique.
type Grade struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	SubjectID int64     `json:"subject_id"`
	Subject   string    `json:"subject"`
	Number    int       `json:"number"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GradeKey identifies a grade by subject name, student and number.
type GradeKey struct {
	StudentID int64
	Subject   string
	Number    int
}

// GradeInput is a new grade recorded by a teacher.
type GradeInput struct {
	GradeKey
	Value float64
}

// GradeEdit changes the value and optionally the number of an existing grade.
type GradeEdit struct {
	GradeKey
	NewNumber *int
	Value     *float64
}
