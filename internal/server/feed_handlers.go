package server

import (
	"github.com/gofiber/fiber/v2"

	"microblogs/models"
	"microblogs/validation"
)

// FeedResponse is one page of the feed.
type FeedResponse struct {
	Posts  []models.FeedPost `json:"posts"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// GetFeed handles GET /api/feed
// @Summary List the feed
// @Description Posts newest first; posts created at the same instant keep their insertion order.
// @Tags feed
// @Produce json
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} FeedResponse
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c)
	ctx := c.UserContext()
	posts, err := s.feedService.ListFeed(ctx, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	total, err := s.feedService.CountFeed(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(FeedResponse{Posts: posts, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// CreatePost handles POST /api/feed
// @Summary Submit a post
// @Tags feed
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.PostInput true "Post"
// @Success 201 {object} models.FeedPost
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /feed [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in validation.PostInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}

	post, err := s.feedService.SubmitPost(c.UserContext(), currentUserID(c), in.Text)
	if err != nil {
		return respondForm(c, err, map[string]string{"text": in.Text})
	}

	c.Location(feedLocation)
	return c.Status(fiber.StatusCreated).JSON(post)
}
