package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// Field error codes.
const (
	FieldInvalid  = "invalid"
	FieldRequired = "required"
	FieldUnique   = "unique"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Form    map[string]string   `json:"form,omitempty"`
}

// FieldError attributes one validation failure to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the full set of field failures found for one input.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// Has reports whether any failure is attributed to field.
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// OnlyUniqueness reports whether every failure is a uniqueness conflict.
func (v ValidationErrors) OnlyUniqueness() bool {
	if len(v) == 0 {
		return false
	}
	for _, fe := range v {
		if fe.Code != FieldUnique {
			return false
		}
	}
	return true
}

// ByField groups messages per field.
func (v ValidationErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(v))
	for _, fe := range v {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Fields lists the distinct failing field names, sorted.
func (v ValidationErrors) Fields() []string {
	seen := make(map[string]struct{}, len(v))
	names := make([]string, 0, len(v))
	for _, fe := range v {
		if _, ok := seen[fe.Field]; ok {
			continue
		}
		seen[fe.Field] = struct{}{}
		names = append(names, fe.Field)
	}
	sort.Strings(names)
	return names
}

// NewUniquenessError reports that value for field is already taken.
func NewUniquenessError(field string) FieldError {
	return FieldError{Field: field, Code: FieldUnique, Message: fmt.Sprintf("%s is already taken", field)}
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
	Fields  ValidationErrors
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, e.Fields.Error())
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewFieldValidationError wraps every collected field failure into one error.
// A set made only of uniqueness conflicts is reported as CONFLICT.
func NewFieldValidationError(fields ValidationErrors) *AppError {
	code := CodeValidation
	if fields.OnlyUniqueness() {
		code = CodeConflict
	}
	return &AppError{
		Code:    code,
		Message: "Invalid input",
		Fields:  fields,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeConflict:
		return fiber.StatusConflict
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	return RespondWithForm(c, status, err, nil)
}

// RespondWithForm is RespondWithError plus the submitted, non-secret form
// values so a client can redisplay them next to the field errors.
func RespondWithForm(c *fiber.Ctx, status int, err error, form map[string]string) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if len(appErr.Fields) > 0 {
			response.Fields = appErr.Fields.ByField()
		}
		// Internal causes stay in the logs.
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}
	if len(form) > 0 {
		response.Form = form
	}

	return c.Status(status).JSON(response)
}
