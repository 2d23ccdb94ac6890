// Package validation holds the input rules for accounts and posts.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"microblogs/models"
)

// Field limits, counted in characters.
const (
	MaxUsernameLength = 30
	MaxNameLength     = 50
	MaxEmailLength    = 254
	MaxBioLength      = 520
	MaxPostLength     = 280
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordBytes = 72
)

var (
	usernamePattern    = regexp.MustCompile(`^@\w{3,}$`)
	emailLocalPattern  = regexp.MustCompile("^[-!#$%&'*+/=?^_`{}|~0-9A-Za-z]+(\\.[-!#$%&'*+/=?^_`{}|~0-9A-Za-z]+)*$")
	// The top-level label is letters, hyphens only inside, or an xn-- punycode label.
	emailDomainPattern = regexp.MustCompile(`^(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+(?:[A-Za-z][A-Za-z-]{0,61}[A-Za-z]|xn--[A-Za-z0-9]{1,59})$`)
)

// Messages reported for each rule.
const (
	msgRequired        = "This field is required."
	msgUsernameFormat  = "Username must consist of @ followed by at least three alphanumericals"
	msgEmailFormat     = "Enter a valid email address."
	msgPasswordFormat  = "Password must contain an uppercase character, a lowercase character and a number"
	msgPasswordTooLong = "Password must not exceed 72 bytes"
	msgPasswordMatch   = "Confirmation does not match password."
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so field errors line up with request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "username_format", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "email_format", func(fl validator.FieldLevel) bool {
		return isEmail(fl.Field().String())
	})
	mustRegister(v, "password_strength", func(fl validator.FieldLevel) bool {
		return hasPasswordComposition(fl.Field().String())
	})
	mustRegister(v, "password_bytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

func isEmail(s string) bool {
	if s == "" || !strings.Contains(s, "@") {
		return false
	}
	at := strings.LastIndex(s, "@")
	local, domain := s[:at], s[at+1:]
	if !emailLocalPattern.MatchString(local) {
		return false
	}
	return emailDomainPattern.MatchString(domain)
}

func hasPasswordComposition(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
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

// translate turns validator output into field errors named after json keys.
// field overrides the reported name for single-value checks.
func translate(err error, field string) models.ValidationErrors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.ValidationErrors{{Field: field, Code: models.FieldInvalid, Message: err.Error()}}
	}

	out := make(models.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if field != "" {
			name = field
		}
		out = append(out, models.FieldError{
			Field:   name,
			Code:    codeFor(fe.Tag()),
			Message: messageFor(fe),
		})
	}
	return out
}

func codeFor(tag string) string {
	if tag == "required" {
		return models.FieldRequired
	}
	return models.FieldInvalid
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).",
			fe.Param(), len([]rune(fmt.Sprint(fe.Value()))))
	case "username_format":
		return msgUsernameFormat
	case "email_format":
		return msgEmailFormat
	case "password_strength":
		return msgPasswordFormat
	case "password_bytes":
		return msgPasswordTooLong
	case "eqfield":
		return msgPasswordMatch
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
