package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/school"
)

// Error is the JSON body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeValidation   = "validation_error"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
)

// Messages shown for credential failures at login. Unknown account, wrong
// password and bad format all read the same.
const (
	msgBadCredentials = "Email or password incorrect!"
	msgNotApproved    = "Account is waiting for approval!"
)

// BasicResponse acknowledges an operation that has no resource to return.
type BasicResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeSuccess(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, BasicResponse{Status: "success", Detail: detail})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// errorStatus maps a domain sentinel to its HTTP status and code.
type errorStatus struct {
	err    error
	status int
	code   string
}

var errorStatuses = []errorStatus{
	{auth.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrStaleToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrTokenExpired, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrInvalidOrExpiredLink, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrRoleMismatch, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{auth.ErrNotApproved, http.StatusForbidden, ErrCodeForbidden},
	{school.ErrNotTeaching, http.StatusForbidden, ErrCodeForbidden},
	{auth.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{auth.ErrAlreadyExists, http.StatusConflict, ErrCodeConflict},
	{school.ErrDuplicateGrade, http.StatusConflict, ErrCodeConflict},
	{school.ErrAlreadyInState, http.StatusConflict, ErrCodeConflict},
	{school.ErrSubjectAssigned, http.StatusConflict, ErrCodeConflict},
	{school.ErrSubjectExists, http.StatusConflict, ErrCodeConflict},
	{auth.ErrInvalidRole, http.StatusBadRequest, ErrCodeBadRequest},
}

// writeServiceError maps err onto the error table. Anything unrecognised is
// logged and reported as a 500 without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			writeError(w, es.status, es.code, err.Error())
			return
		}
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFromContext(r.Context()),
		"error", err,
	)
	writeInternalError(w, "internal server error")
}
