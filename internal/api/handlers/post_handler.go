package handlers

import (
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const maxMediaSize = 8 << 20

type PostHandler struct {
	s        service.PostService
	uploader media.Uploader
}

// NewPostHandler builds the post routes. uploader may be nil, in which case
// only media URLs are accepted.
func NewPostHandler(service service.PostService, uploader media.Uploader) *PostHandler {
	return &PostHandler{s: service, uploader: uploader}
}

// CreatePost accepts either a JSON body or a multipart form with an optional
// "media" image file.
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := h.parseForm(c, &pc); err != nil {
			return errorResponse(c, err)
		}
	} else if err := c.BodyParser(&pc); err != nil {
		return errorResponse(c, fiber.NewError(fiber.StatusBadRequest, "Unable to parse body"))
	}

	post, err := h.s.Create(c.Context(), userID, &pc)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) parseForm(c *fiber.Ctx, pc *transfer.PostCreation) error {
	pc.Platform = c.FormValue("platform")
	pc.Content = c.FormValue("content")
	pc.MediaURL = c.FormValue("media_url")

	if v := c.FormValue("scheduled_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "scheduled_time must be RFC 3339")
		}
		pc.ScheduledTime = t
	}

	file, err := c.FormFile("media")
	if err != nil {
		// No file part.
		return nil
	}
	if h.uploader == nil {
		return fiber.NewError(fiber.StatusBadRequest, "media uploads are not enabled")
	}
	if file.Size > maxMediaSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "media file is too large")
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	ref, err := h.uploader.Upload(c.Context(), data)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	pc.MediaURL = ref
	return nil
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.s.List(c.Context(), userID, models.PostStatus(c.Query("status")))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil || postID <= 0 {
		return errorResponse(c, fiber.NewError(fiber.StatusBadRequest, "post id is not valid"))
	}

	post, err := h.s.Get(c.Context(), GetUserID(c), int64(postID))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil || postID <= 0 {
		return errorResponse(c, fiber.NewError(fiber.StatusBadRequest, "post id is not valid"))
	}

	revoked, err := h.s.Cancel(c.Context(), userID, int64(postID))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(transfer.CancelResult{
		Status:       models.PostStatusCancelled,
		JobCancelled: revoked,
	})
}

func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil || postID <= 0 {
		return errorResponse(c, fiber.NewError(fiber.StatusBadRequest, "post id is not valid"))
	}

	attempts, err := h.s.Attempts(c.Context(), GetUserID(c), int64(postID))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(attempts)
}
