package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"microblogs/models"
	"microblogs/validation"
)

const feedLocation = "/api/feed"

// SessionResponse is returned by sign-up and login.
type SessionResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	Redirect string       `json:"redirect,omitempty"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignUp handles POST /api/auth/sign_up
// @Summary Sign up
// @Description Create an account. Every invalid field is reported at once and the entered values, minus passwords, are echoed back.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validation.SignUpInput true "Sign-up form"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/sign_up [post]
func (s *Server) SignUp(c *fiber.Ctx) error {
	var in validation.SignUpInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	in.Normalize()

	user, err := s.userService.SignUp(c.UserContext(), in)
	if err != nil {
		return respondForm(c, err, in.Form())
	}

	token, err := s.startSession(c, user)
	if err != nil {
		return respondError(c, err)
	}

	c.Location(feedLocation)
	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		Token:    token,
		User:     user,
		Redirect: feedLocation,
	})
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.startSession(c, user)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(SessionResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
// @Summary Log out
// @Description Revokes the current session token and clears the session cookie.
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims := currentClaims(c); claims != nil {
		if err := s.revoker.Revoke(c.UserContext(), claims); err != nil {
			return respondError(c, models.NewInternalError(err))
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// startSession issues a token for user and sets it as the session cookie.
func (s *Server) startSession(c *fiber.Ctx, user *models.User) (string, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return token, nil
}
