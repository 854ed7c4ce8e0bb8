package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go-userapi/internal/models"

	"github.com/go-playground/validator/v10"
)

// emailPattern is the accepted address shape: local@domain.tld
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// StructValidator is the shared validator instance with the app's custom tags.
var StructValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tag names or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("useremail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// FieldError describes the first rule a payload failed.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Message
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Nama     string `json:"nama"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// rule is one check, evaluated with validator.Var.
type rule struct {
	field string
	value string
	tag   string
}

// firstFailure runs rules in order and reports the first one that fails.
func firstFailure(rules []rule) *FieldError {
	for _, r := range rules {
		err := StructValidator.Var(r.value, r.tag)
		if err == nil {
			continue
		}
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return &FieldError{Field: r.field, Tag: r.tag, Message: fmt.Sprintf("The %s field is not valid.", r.field)}
		}
		return &FieldError{
			Field:   r.field,
			Tag:     verrs[0].Tag(),
			Message: generateValidationMessage(r.field, verrs[0]),
		}
	}
	return nil
}

// ValidateRegistration checks a registration payload. All four fields are
// required first; then username, email, nama and password constraints.
func ValidateRegistration(in RegisterInput) *FieldError {
	return firstFailure([]rule{
		{"username", in.Username, "notblank"},
		{"password", in.Password, "notblank"},
		{"email", in.Email, "notblank"},
		{"nama", in.Nama, "notblank"},
		{"username", in.Username, "max=50"},
		{"email", in.Email, "max=100"},
		{"email", in.Email, "useremail"},
		{"nama", in.Nama, "max=100"},
		{"password", in.Password, "min=6"},
		{"password", in.Password, "max=255"},
	})
}

// ValidateLogin only checks that username and password are present.
func ValidateLogin(in LoginInput) *FieldError {
	return firstFailure([]rule{
		{"username", in.Username, "notblank"},
		{"password", in.Password, "notblank"},
	})
}

// ValidateUpdate requires at least one non-blank updatable field and applies
// the registration constraints to every non-empty field supplied.
func ValidateUpdate(patch models.UserPatch) *FieldError {
	if isBlank(patch.Username) && isBlank(patch.Email) && isBlank(patch.Nama) {
		return &FieldError{
			Field:   "username,email,nama",
			Tag:     "required_without_all",
			Message: "At least one of the username, email or nama fields is required.",
		}
	}

	var rules []rule
	if hasValue(patch.Username) {
		rules = append(rules, rule{"username", *patch.Username, "max=50"})
	}
	if hasValue(patch.Email) {
		rules = append(rules,
			rule{"email", *patch.Email, "max=100"},
			rule{"email", *patch.Email, "useremail"},
		)
	}
	if hasValue(patch.Nama) {
		rules = append(rules, rule{"nama", *patch.Nama, "max=100"})
	}
	return firstFailure(rules)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}

// generateValidationMessage creates a user-friendly message for a validation error.
func generateValidationMessage(field string, err validator.FieldError) string {
	tag := err.Tag()
	param := err.Param()
	kind := err.Kind()

	switch tag {
	case "required", "notblank":
		return fmt.Sprintf("The %s field is required.", field)
	case "email", "useremail":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "min":
		switch kind {
		case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
			return fmt.Sprintf("The %s field must have at least %s characters.", field, param)
		default:
			return fmt.Sprintf("The %s field must be at least %s.", field, param)
		}
	case "max":
		switch kind {
		case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
			return fmt.Sprintf("The %s field must not exceed %s characters.", field, param)
		default:
			return fmt.Sprintf("The %s field must be at most %s.", field, param)
		}
	default:
		return fmt.Sprintf("The %s field is not valid (tag: %s).", field, tag)
	}
}
