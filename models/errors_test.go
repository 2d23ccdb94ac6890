package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrors_Grouping(t *testing.T) {
	errs := ValidationErrors{
		{Field: "username", Code: FieldInvalid, Message: "bad"},
		{Field: "email", Code: FieldUnique, Message: "taken"},
		{Field: "username", Code: FieldUnique, Message: "taken"},
	}

	assert.True(t, errs.Has("username"))
	assert.False(t, errs.Has("bio"))
	assert.Equal(t, []string{"email", "username"}, errs.Fields())
	assert.Equal(t, []string{"bad", "taken"}, errs.ByField()["username"])
	assert.False(t, errs.OnlyUniqueness())
	assert.True(t, ValidationErrors{NewUniquenessError("email")}.OnlyUniqueness())
	assert.False(t, ValidationErrors{}.OnlyUniqueness())
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewFieldValidationError(ValidationErrors{{Field: "text", Code: FieldRequired}}), fiber.StatusBadRequest},
		{"conflict", NewFieldValidationError(ValidationErrors{NewUniquenessError("username")}), fiber.StatusConflict},
		{"unauthorized", NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{"not found", NewNotFoundError("User", 1), fiber.StatusNotFound},
		{"wrapped", fmt.Errorf("outer: %w", NewUnauthorizedError("no")), fiber.StatusUnauthorized},
		{"plain", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestRespondWithForm(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		err := NewFieldValidationError(ValidationErrors{{Field: "text", Code: FieldInvalid, Message: "too long"}})
		return RespondWithForm(c, StatusFor(err), err, map[string]string{"text": "hello"})
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, CodeValidation, got.Code)
	assert.Equal(t, []string{"too long"}, got.Fields["text"])
	assert.Equal(t, "hello", got.Form["text"])
}

func TestRespondWithError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("dsn=secret")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "dsn=secret")
}
