package api

import (
	"strings"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/school"
)

// signUpRequest covers all three roles. Name and SchoolYear apply to
// students and teachers, Username to admins; handlers check which is required.
type signUpRequest struct {
	Name            string `json:"name" validate:"omitempty,min=6"`
	Username        string `json:"username" validate:"omitempty,min=6"`
	Email           string `json:"email" validate:"min=4,contains=@"`
	Password        string `json:"password" validate:"strongpassword,max=32"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	SchoolYear      *int   `json:"school_year"`
}

func (req *signUpRequest) normalize() {
	req.Name = normalizeName(req.Name)
	req.Username = normalizeName(req.Username)
	req.Email = normalizeEmail(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.ConfirmPassword = strings.TrimSpace(req.ConfirmPassword)
}

// missingIdentity reports which required name field is absent for role.
func (req *signUpRequest) missingIdentity(role auth.Role) string {
	if role == auth.RoleAdmin {
		if req.Username == "" {
			return fieldMessages["username"]
		}
		return ""
	}
	if req.Name == "" {
		return fieldMessages["name"]
	}
	return ""
}

func (req *signUpRequest) input(role auth.Role) auth.SignUpInput {
	in := auth.SignUpInput{Email: req.Email, Password: req.Password}
	switch role {
	case auth.RoleAdmin:
		in.Username = req.Username
	case auth.RoleStudent:
		in.Name = req.Name
		in.SchoolYear = req.SchoolYear
	default:
		in.Name = req.Name
	}
	return in
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

func (req *loginRequest) normalize() {
	req.Email = normalizeEmail(req.Email)
	req.Username = normalizeName(req.Username)
	req.Password = strings.TrimSpace(req.Password)
}

// login returns the identifier the role logs in with.
func (req *loginRequest) login(role auth.Role) string {
	if role == auth.RoleAdmin {
		return req.Username
	}
	return req.Email
}

type passwordRequest struct {
	Password        string `json:"password" validate:"strongpassword,max=32"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

func (req *passwordRequest) normalize() {
	req.Password = strings.TrimSpace(req.Password)
	req.ConfirmPassword = strings.TrimSpace(req.ConfirmPassword)
}

type resetRequest struct {
	Email string `json:"email" validate:"min=4,contains=@"`
}

func (req *resetRequest) normalize() {
	req.Email = normalizeEmail(req.Email)
}

// profileRequest edits the caller's own profile. Absent fields are kept.
type profileRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=6"`
	Username   *string `json:"username" validate:"omitempty,min=6"`
	Email      *string `json:"email" validate:"omitempty,min=4,contains=@"`
	SchoolYear *int    `json:"school_year"`
}

func (req *profileRequest) normalize() {
	normalizeOptional(req.Name, normalizeName)
	normalizeOptional(req.Username, normalizeName)
	normalizeOptional(req.Email, normalizeEmail)
}

// update keeps only the fields that belong to role.
func (req *profileRequest) update(role auth.Role) auth.ProfileUpdate {
	upd := auth.ProfileUpdate{Email: req.Email}
	switch role {
	case auth.RoleAdmin:
		upd.Username = req.Username
	case auth.RoleStudent:
		upd.Name = req.Name
		upd.SchoolYear = req.SchoolYear
	default:
		upd.Name = req.Name
	}
	return upd
}

type gradeRequest struct {
	Subject   string   `json:"subject" validate:"required"`
	Number    int      `json:"number" validate:"gte=0,lte=100"`
	Value     *float64 `json:"value" validate:"omitempty,gte=0,lte=100"`
	NewNumber *int     `json:"new_number" validate:"omitempty,gte=0,lte=100"`
}

func (req *gradeRequest) normalize() {
	req.Subject = school.NormalizeSubject(req.Subject)
}

func (req *gradeRequest) key(studentID int64) school.GradeKey {
	return school.GradeKey{StudentID: studentID, Subject: req.Subject, Number: req.Number}
}

type subjectRequest struct {
	Name      string `json:"name" validate:"required"`
	TeacherID *int64 `json:"teacher_id"`
}

func (req *subjectRequest) normalize() {
	req.Name = school.NormalizeSubject(req.Name)
}
