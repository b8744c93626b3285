package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

// AccountHandler exposes the credential sink and account management over
// HTTP. The OAuth exchange itself happens elsewhere; this surface only
// receives the resulting tokens.
type AccountHandler struct {
	tokens store.TokenStore
}

func NewAccountHandler(tokens store.TokenStore) *AccountHandler {
	return &AccountHandler{tokens: tokens}
}

// ConnectAccount is the credential sink: it receives the
// (platform, token, expiresIn, refreshToken, accountInfo) tuple from a
// completed OAuth exchange and persists it encrypted.
func (h *AccountHandler) ConnectAccount(c *fiber.Ctx) error {
	var req transfer.ConnectAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown platform",
		})
	}

	if req.AccessToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "access_token is required",
		})
	}

	opts := &store.SaveOptions{
		ExpiresIn:    req.ExpiresIn,
		RefreshToken: req.RefreshToken,
	}
	if req.AccountID != "" {
		opts.AccountInfo = &store.AccountInfo{
			AccountID:   req.AccountID,
			AccountName: req.AccountName,
			Username:    req.Username,
			IsDefault:   req.IsDefault,
		}
	}

	if err := h.tokens.SaveToken(c.Context(), platform, req.AccessToken, opts); err != nil {
		slog.Error("failed to save token", "platform", platform, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to save account",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Account connected",
	})
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Query("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown platform",
		})
	}

	accounts, err := h.tokens.LoadAllAccounts(c.Context(), platform)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}

	// Token material never leaves through the listing surface.
	infos := make([]transfer.AccountInfoResponse, 0, len(accounts))
	for _, acc := range accounts {
		infos = append(infos, transfer.AccountInfoResponse{
			AccountID:   acc.AccountID,
			AccountName: acc.AccountName,
			Username:    acc.Username,
			Platform:    string(platform),
			IsDefault:   acc.IsDefault,
			ExpiresAt:   acc.ExpiresAt,
			ConnectedAt: acc.ConnectedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(infos)
}

func (h *AccountHandler) RemoveAccount(c *fiber.Ctx) error {
	var req struct {
		Platform  string `json:"platform"`
		AccountID string `json:"account_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown platform",
		})
	}

	removed, err := h.tokens.DeleteToken(c.Context(), platform, req.AccountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Account removed",
	})
}

func (h *AccountHandler) SetDefaultAccount(c *fiber.Ctx) error {
	var req struct {
		Platform  string `json:"platform"`
		AccountID string `json:"account_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown platform",
		})
	}

	ok, err := h.tokens.SetDefaultAccount(c.Context(), platform, req.AccountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to set default account",
		})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Default account updated",
	})
}
