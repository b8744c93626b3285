package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type PostHandler struct {
	posts store.PostStore
}

func NewPostHandler(posts store.PostStore) *PostHandler {
	return &PostHandler{posts: posts}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	scheduleTime, err := time.Parse(time.RFC3339, req.ScheduleTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "schedule_time must be RFC 3339",
		})
	}

	if len(req.Platforms) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "at least one platform is required",
		})
	}
	platforms := make([]models.Platform, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		platform, err := models.ParsePlatform(p)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown platform: " + p,
			})
		}
		platforms = append(platforms, platform)
	}

	id, err := gonanoid.New()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to create post",
		})
	}

	status := models.PostStatusScheduled
	if req.Draft {
		status = models.PostStatusDraft
	}

	post := &models.ScheduledPost{
		ID:           id,
		ScheduleTime: scheduleTime,
		Content:      req.Content,
		Platforms:    platforms,
		Status:       status,
	}

	if err := h.posts.Append(c.Context(), post); err != nil {
		slog.Error("failed to persist post", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to save post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"id":      id,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.posts.Load(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}
	if posts == nil {
		posts = []*models.ScheduledPost{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}
