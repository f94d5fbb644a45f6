package auth

import (
	"time"
)

// Role identifies which account table and login policy a request targets.
type Role string

const (
	// RoleStudent accounts log in by email once an admin has approved them.
	RoleStudent Role = "student"

	// RoleTeacher accounts log in by email once approved and may grade
	// students in the subjects assigned to them.
	RoleTeacher Role = "teacher"

	// RoleAdmin accounts log in by username, approve other accounts and
	// manage subjects. No approval gate.
	RoleAdmin Role = "admin"
)

// Roles lists every account role in route order.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

// ParseRole converts a path segment or claim value into a Role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// RequiresApproval reports whether accounts of this role must be approved
// by an admin before they can log in.
func (r Role) RequiresApproval() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Account is a Student, Teacher or Admin account. Fields that don't apply
// to a role are left zero (Name and Approved for admins, Username for
// students and teachers, SchoolYear for anyone but students).
type Account struct {
	ID         int64  `json:"id"`
	Role       Role   `json:"role"`
	Name       string `json:"name,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email"`
	SchoolYear *int   `json:"school_year,omitempty"`
	Approved   bool   `json:"approved"`

	PasswordHash     string     `json:"-"` // never serialised
	TokenVersion     int        `json:"-"`
	ResetToken       string     `json:"-"`
	ResetTokenExpire *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is the name used in emails: the person's name, or the
// username for admins.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Username
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// SignUpInput carries the already-validated sign-up fields.
// Username applies to admins only, Name and SchoolYear to students/teachers.
type SignUpInput struct {
	Name       string
	Username   string
	Email      string
	Password   string
	SchoolYear *int
}

// LoginInput carries login credentials. Login is the email for students and
// teachers and the username for admins.
type LoginInput struct {
	Login    string
	Password string
}

// ProfileUpdate lists the profile fields an account owner may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string
	Username   *string
	Email      *string
	SchoolYear *int
}
