package validation

import (
	"strings"

	"microblogs/models"
)

// SignUpInput is the registration form.
type SignUpInput struct {
	FirstName            string `json:"first_name" validate:"required,max=50"`
	LastName             string `json:"last_name" validate:"required,max=50"`
	Username             string `json:"username" validate:"required,max=30,username_format"`
	Email                string `json:"email" validate:"required,max=254,email_format"`
	Bio                  string `json:"bio" validate:"max=520"`
	NewPassword          string `json:"new_password" validate:"required,password_bytes,password_strength"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=NewPassword"`
}

// Normalize trims the names, username and email. Bio and passwords are kept verbatim.
func (in *SignUpInput) Normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
}

// Form returns the values safe to echo back to the client.
func (in *SignUpInput) Form() map[string]string {
	return map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"username":   in.Username,
		"email":      in.Email,
		"bio":        in.Bio,
	}
}

// ProfileInput is the editable part of an account.
type ProfileInput struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Username  string `json:"username" validate:"required,max=30,username_format"`
	Email     string `json:"email" validate:"required,max=254,email_format"`
	Bio       string `json:"bio" validate:"max=520"`
}

func (in *ProfileInput) Normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
}

func (in *ProfileInput) Form() map[string]string {
	return map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"username":   in.Username,
		"email":      in.Email,
		"bio":        in.Bio,
	}
}

// PostInput is the post submission form.
type PostInput struct {
	Text string `json:"text" validate:"required,max=280"`
}

func (in *PostInput) Normalize() {
	in.Text = strings.TrimSpace(in.Text)
}

// ValidateSignUp checks every sign-up field and returns all failures.
func ValidateSignUp(in SignUpInput) models.ValidationErrors {
	return translate(validate.Struct(in), "")
}

// ValidateProfile checks every profile field and returns all failures.
func ValidateProfile(in ProfileInput) models.ValidationErrors {
	return translate(validate.Struct(in), "")
}

// ValidatePost checks the post text.
func ValidatePost(in PostInput) models.ValidationErrors {
	return translate(validate.Struct(in), "")
}

// NormalizeEmail trims the address and lowercases its domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func check(value, tags, field string) error {
	if errs := translate(validate.Var(value, tags), field); len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateUsername checks the @handle format and length. Uniqueness is a storage concern.
func ValidateUsername(username string) error {
	return check(username, "required,max=30,username_format", "username")
}

// ValidateName checks a first or last name.
func ValidateName(field, name string) error {
	return check(name, "required,max=50", field)
}

// ValidateEmail checks address syntax only.
func ValidateEmail(email string) error {
	return check(email, "required,max=254,email_format", "email")
}

func ValidateBio(bio string) error {
	return check(bio, "max=520", "bio")
}

func ValidatePostText(text string) error {
	return check(text, "required,max=280", "text")
}

// ValidatePassword requires an uppercase letter, a lowercase letter and a digit.
func ValidatePassword(password string) error {
	return check(password, "required,password_bytes,password_strength", "new_password")
}

func ValidatePasswordConfirmation(password, confirmation string) error {
	if password != confirmation {
		return models.ValidationErrors{{
			Field:   "password_confirmation",
			Code:    models.FieldInvalid,
			Message: msgPasswordMatch,
		}}
	}
	return nil
}
