package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"dealdialer/config"
	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// googleOAuthConfig is built per request because config.LoadConfig runs
// after package init.
func googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.Google.ClientID,
		ClientSecret: config.AppConfig.Google.ClientSecret,
		RedirectURL:  config.AppConfig.Google.RedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleOAuth starts the Google sign-in flow. GET /auth/google
func GoogleOAuth(c *fiber.Ctx) error {
	// State token with CSRF protection, carried in a short-lived cookie.
	state := uuid.NewString()

	cookie := new(fiber.Cookie)
	cookie.Name = "oauth_state"
	cookie.Value = state
	cookie.Expires = time.Now().Add(10 * time.Minute)
	cookie.HTTPOnly = true
	cookie.Secure = true
	cookie.SameSite = "Lax"
	c.Cookie(cookie)

	url := googleOAuthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

// GoogleOAuthCallback exchanges the authorization code, finds or creates
// the banker, and issues a token pair. GET /auth/google/callback
func GoogleOAuthCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	cookieState := c.Cookies("oauth_state")
	if state == "" || cookieState == "" || state != cookieState {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid state parameter", nil)
	}
	c.ClearCookie("oauth_state")

	code := c.Query("code")
	if code == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Authorization code not provided", nil)
	}

	conf := googleOAuthConfig()
	token, err := conf.Exchange(context.Background(), code)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to exchange authorization code", err)
	}

	client := conf.Client(context.Background(), token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to fetch Google profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Google API error: "+string(body), nil)
	}

	var profile struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to parse Google profile", err)
	}
	if profile.Email == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Google account email is required", nil)
	}

	var banker models.Banker
	err = config.DB.Where("email = ?", profile.Email).First(&banker).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		banker = models.Banker{
			Name:     profile.Name,
			Email:    profile.Email,
			GoogleID: &profile.ID,
			IsActive: true,
		}
		if err := config.DB.Create(&banker).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create account", nil)
		}
	case err != nil:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up account", nil)
	default:
		if !banker.IsActive {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
		}
		if banker.GoogleID == nil || *banker.GoogleID != profile.ID {
			if err := config.DB.Model(&banker).Update("google_id", &profile.ID).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to link Google account", nil)
			}
		}
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
