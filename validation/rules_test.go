package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microblogs/models"
)

func validSignUp() SignUpInput {
	return SignUpInput{
		FirstName:            "George",
		LastName:             "Ducks",
		Username:             "@george",
		Email:                "georgeducks@lemonade.org",
		Bio:                  "I run a lemonade stand",
		NewPassword:          "Password123",
		PasswordConfirmation: "Password123",
	}
}

func fieldErrors(t *testing.T, err error) models.ValidationErrors {
	t.Helper()
	var errs models.ValidationErrors
	require.True(t, errors.As(err, &errs), "expected ValidationErrors, got %T", err)
	return errs
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{"valid", "@george", true},
		{"three word chars", "@abc", true},
		{"digits and underscore", "@j_0", true},
		{"exactly thirty", "@" + strings.Repeat("x", 29), true},
		{"thirty one", "@" + strings.Repeat("x", 30), false},
		{"missing at", "george", false},
		{"too short", "@ge", false},
		{"double at", "@@george", false},
		{"non word char", "@george$", false},
		{"space", "@geo rge", false},
		{"empty", "", false},
		{"upper case only word chars", "BAD_USERNAME", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUsername(tt.username)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, fieldErrors(t, err).Has("username"))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		valid bool
	}{
		{"george.lemons@apples.org", true},
		{"georgeducks@lemonade.org", true},
		{"example@my.email.is.this", true},
		{"first+tag@sub.example.co.uk", true},
		{"example.org", false},
		{"myemail", false},
		{"example@myemail", false},
		{"example@myemail.", false},
		{"example@.org", false},
		{"example@domain-.org", false},
		{"a@example.-org", false},
		{"a@b.-c", false},
		{"a@example.c-", false},
		{"a@example.123", false},
		{"a@1.23", false},
		{"a@example.o", false},
		{"a@example.co-op", true},
		{"a@example.xn--p1ai", true},
		{"exa mple@domain.org", false},
		{".example@domain.org", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			t.Parallel()
			err := ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateName("first_name", "George"))
	assert.NoError(t, ValidateName("first_name", strings.Repeat("x", 50)))
	assert.Error(t, ValidateName("first_name", strings.Repeat("x", 51)))

	err := ValidateName("last_name", "")
	require.Error(t, err)
	errs := fieldErrors(t, err)
	assert.Equal(t, "last_name", errs[0].Field)
	assert.Equal(t, models.FieldRequired, errs[0].Code)
}

func TestValidateName_CountsCharactersNotBytes(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateName("first_name", strings.Repeat("é", 50)))
}

func TestValidateBio(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateBio(""))
	assert.NoError(t, ValidateBio(strings.Repeat("x", 520)))
	assert.Error(t, ValidateBio(strings.Repeat("x", 521)))
}

func TestValidatePostText(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePostText("x"))
	assert.NoError(t, ValidatePostText(strings.Repeat("x", 280)))
	assert.Error(t, ValidatePostText(strings.Repeat("x", 281)))
	assert.Error(t, ValidatePostText(""))
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		password string
		valid    bool
	}{
		{"Password123", true},
		{"aB1", true},
		{"password123", false},
		{"PASSWORD123", false},
		{"Password", false},
		{"", false},
		{"Aa1" + strings.Repeat("x", 69), true},
		{"Aa1" + strings.Repeat("x", 70), false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, fieldErrors(t, err).Has("new_password"))
		})
	}
}

func TestValidatePasswordConfirmation(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePasswordConfirmation("Password123", "Password123"))
	err := ValidatePasswordConfirmation("Password123", "WrongPassword123")
	require.Error(t, err)
	assert.True(t, fieldErrors(t, err).Has("password_confirmation"))
}

func TestValidateSignUp(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ValidateSignUp(validSignUp()))
	})

	t.Run("reports every failing field", func(t *testing.T) {
		t.Parallel()
		in := validSignUp()
		in.Username = "badusername"
		in.Email = "myemail"
		in.FirstName = ""
		in.NewPassword = "password123"
		in.PasswordConfirmation = "password321"

		errs := ValidateSignUp(in)
		assert.Equal(t,
			[]string{"email", "first_name", "new_password", "password_confirmation", "username"},
			errs.Fields())
	})

	t.Run("confirmation mismatch only", func(t *testing.T) {
		t.Parallel()
		in := validSignUp()
		in.NewPassword = "WrongPassword123"

		errs := ValidateSignUp(in)
		assert.Equal(t, []string{"password_confirmation"}, errs.Fields())
	})

	t.Run("uses model rules", func(t *testing.T) {
		t.Parallel()
		in := validSignUp()
		in.Bio = strings.Repeat("x", 521)

		errs := ValidateSignUp(in)
		require.Len(t, errs, 1)
		assert.Equal(t, "bio", errs[0].Field)
		assert.Contains(t, errs[0].Message, "at most 520")
	})
}

func TestSignUpInput_NormalizeAndForm(t *testing.T) {
	in := SignUpInput{
		FirstName:   "  George ",
		Username:    " @george",
		Email:       " George@Lemonade.ORG ",
		Bio:         "  padded bio  ",
		NewPassword: " Password123 ",
	}
	in.Normalize()
	assert.Equal(t, "  padded bio  ", in.Bio)

	assert.Equal(t, "George", in.FirstName)
	assert.Equal(t, "@george", in.Username)
	assert.Equal(t, "George@lemonade.org", in.Email)
	assert.Equal(t, " Password123 ", in.NewPassword)

	form := in.Form()
	assert.NotContains(t, form, "new_password")
	assert.NotContains(t, form, "password_confirmation")
	assert.Equal(t, "@george", form["username"])
}

func TestValidateSignUp_BioLengthCountsSurroundingSpace(t *testing.T) {
	in := validSignUp()
	in.Bio = " " + strings.Repeat("b", MaxBioLength)
	in.Normalize()

	errs := ValidateSignUp(in)
	require.Len(t, errs, 1)
	assert.Equal(t, "bio", errs[0].Field)

	profile := ProfileInput{FirstName: "George", LastName: "Ducks", Username: "@george", Email: "george@lemonade.org", Bio: in.Bio}
	profile.Normalize()
	assert.Equal(t, in.Bio, profile.Bio)
	assert.True(t, ValidateProfile(profile).Has("bio"))
}

func TestValidatePost_WhitespaceOnlyIsEmpty(t *testing.T) {
	in := PostInput{Text: "   "}
	in.Normalize()
	errs := ValidatePost(in)
	require.Len(t, errs, 1)
	assert.Equal(t, models.FieldRequired, errs[0].Code)
}
