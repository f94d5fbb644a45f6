package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Validation messages returned to clients, keyed by the JSON field name.
var fieldMessages = map[string]string{
	"email":            "Invalid email!",
	"name":             "Invalid name!",
	"username":         "Invalid username!",
	"value":            "Invalid grade!",
	"number":           "Invalid grade number!",
	"new_number":       "Invalid grade number!",
	"subject":          "Invalid subject!",
	"confirm_password": "Password confirmation mismatch!",
}

const (
	msgWeakPassword    = "Password is weak! (Must contain mixed case and at least one digit)"
	msgLongPassword    = "Password is too long!"
	msgInvalidJSON     = "invalid JSON body"
	minPasswordLength  = 8
	maxPasswordLength  = 32
	strongPasswordRule = "strongpassword"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	//nolint:errcheck // registration only fails for an empty tag
	v.RegisterValidation(strongPasswordRule, func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	return v
}

// isStrongPassword requires at least eight characters, both cases and a digit.
func isStrongPassword(p string) bool {
	if len(p) < minPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// validationMessage turns the first failed rule into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	if fe.Field() == "password" {
		if fe.Tag() == "max" {
			return msgLongPassword
		}
		return msgWeakPassword
	}
	if msg, ok := fieldMessages[fe.Field()]; ok {
		return msg
	}
	return fmt.Sprintf("Invalid %s!", fe.Field())
}

// normalizer is implemented by request bodies that trim or case-fold their
// fields before validation.
type normalizer interface {
	normalize()
}

// decodeAndValidate reads a JSON body into dst, normalises it and runs the
// struct's validate tags. It writes the 400 response itself and reports
// whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, msgInvalidJSON)
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, validationMessage(err))
		return false
	}
	return true
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeOptional(p *string, fn func(string) string) {
	if p != nil {
		*p = fn(*p)
	}
}
