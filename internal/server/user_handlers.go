package server

import (
	"github.com/gofiber/fiber/v2"

	"microblogs/validation"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Description Same rules as sign-up; keeping the current username or email is allowed.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.ProfileInput true "Profile"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var in validation.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	in.Normalize()

	user, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondForm(c, err, in.Form())
	}
	return c.JSON(user)
}

// DeleteMyAccount handles DELETE /api/users/me
// @Summary Delete own account
// @Description Deletes the account and every post it authored, then ends the session.
// @Tags users
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [delete]
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	if err := s.userService.DeleteAccount(c.UserContext(), currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return s.Logout(c)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.PublicUser
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user.Public())
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary List a user's posts
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} FeedResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	ctx := c.UserContext()
	posts, err := s.feedService.ListByAuthor(ctx, id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	total, err := s.feedService.CountByAuthor(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(FeedResponse{Posts: posts, Total: total, Limit: page.Limit, Offset: page.Offset})
}
