package school

import (
	"errors"

	"github.com/nerrad567/schoolhub-core/internal/auth"
)

// Domain errors. Missing rows reuse auth.ErrNotFound so the API layer maps
// them in one place.
var (
	ErrNotFound        = auth.ErrNotFound
	ErrDuplicateGrade  = errors.New("grade with this number already exists")
	ErrNotTeaching     = errors.New("teacher is not assigned to this subject")
	ErrSubjectAssigned = errors.New("subject already has a teacher")
	ErrSubjectExists   = errors.New("subject already exists")
	ErrAlreadyInState  = errors.New("account is already in that approval state")
)
