package controller

import (
	"time"

	"dealdialer/config"
	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
)

// Register creates a banker account. POST /auth/register
func Register(c *fiber.Ctx) error {
	var input struct {
		Name     string `json:"name" validate:"required,min=2"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		Title    string `json:"title"`
		Firm     string `json:"firm"`
		Phone    string `json:"phone"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var existing models.Banker
	if err := config.DB.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered", nil)
	}

	banker := models.Banker{
		Name:  input.Name,
		Email: input.Email,
		Title: input.Title,
		Firm:  input.Firm,
		Phone: input.Phone,
	}
	if err := banker.SetPassword(input.Password); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", nil)
	}
	if err := config.DB.Create(&banker).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create account", nil)
	}

	access, refresh, err := utils.GenerateJWTToken(&banker)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to issue tokens", nil)
	}
	storeRefreshToken(&banker, refresh)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"banker":        banker,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Login authenticates a banker. POST /auth/login
func Login(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var banker models.Banker
	if err := config.DB.Where("email = ?", input.Email).First(&banker).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}
	if !banker.CheckPassword(input.Password) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}
	if !banker.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
	}

	access, refresh, err := utils.GenerateJWTToken(&banker)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to issue tokens", nil)
	}
	storeRefreshToken(&banker, refresh)

	return c.JSON(fiber.Map{
		"banker":        banker,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// RefreshToken exchanges a refresh token for a new token pair.
// POST /auth/refresh
func RefreshToken(c *fiber.Ctx) error {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var stored models.RefreshToken
	if err := config.DB.Where("token = ? AND revoked_at IS NULL", input.RefreshToken).First(&stored).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", nil)
	}
	if time.Now().After(stored.ExpiresAt) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Refresh token expired", nil)
	}

	access, refresh, err := utils.RefreshTokens(input.RefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
	}

	now := time.Now()
	config.DB.Model(&stored).Update("revoked_at", &now)

	var banker models.Banker
	config.DB.First(&banker, stored.BankerID)
	storeRefreshToken(&banker, refresh)

	return c.JSON(fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// GetCurrentBanker returns the authenticated banker. GET /auth/me
func GetCurrentBanker(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	return c.JSON(banker)
}

func storeRefreshToken(banker *models.Banker, token string) {
	config.DB.Create(&models.RefreshToken{
		BankerID:  banker.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	})
}
