package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/pkg/utils"
)

type PlatformHandler struct {
	ps  service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{ps: ps, cfg: cfg}
}

// AddSocialAccount redirects to the platform consent screen. The caller's
// session token travels as the OAuth state and identifies the user on the
// callback.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform, err := parsePlatform(c)
	if err != nil {
		return errorResponse(c, err)
	}

	state := c.Query("state")
	if _, err := utils.ValidateToken(h.cfg.SecretKey, state); err != nil {
		return errorResponse(c, fiber.NewError(fiber.StatusUnauthorized, "Unable to validate user"))
	}

	authURL, err := h.ps.AuthURL(platform, state)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	platform, err := parsePlatform(c)
	if err != nil {
		return errorResponse(c, err)
	}
	state := c.Query("state")

	userID, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return errorResponse(c, fiber.NewError(fiber.StatusBadRequest, "Unable to validate user"))
	}

	if _, err := h.ps.Callback(c.Context(), platform, c.Query("code"), state, userID); err != nil {
		slog.Info("account linking failed", "platform", platform, "user_id", userID, "error", err)
		return c.Redirect(fmt.Sprintf("%s/dashboard/accounts?error=%s", h.cfg.FrontendURL, platform), fiber.StatusTemporaryRedirect)
	}

	return c.Redirect(fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListConnections(c *fiber.Ctx) error {
	statuses, err := h.ps.Connections(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(statuses)
}

func (h *PlatformHandler) Disconnect(c *fiber.Ctx) error {
	platform, err := parsePlatform(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.ps.Disconnect(c.Context(), GetUserID(c), platform); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
