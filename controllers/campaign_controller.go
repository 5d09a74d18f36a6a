package controller

import (
	"log"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Apollo *utils.ApolloClient
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
		Apollo: utils.NewApolloClient(),
	}
}

// CreateCampaign creates a prospecting campaign. POST /api/v1/campaigns
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	var input struct {
		Name        string  `json:"name" validate:"required,min=2"`
		Description string  `json:"description"`
		Industry    string  `json:"industry"`
		Geography   string  `json:"geography"`
		EBITDAMin   float64 `json:"ebitda_min" validate:"min=0"`
		EBITDAMax   float64 `json:"ebitda_max" validate:"min=0"`
		RevenueMin  float64 `json:"revenue_min" validate:"min=0"`
		RevenueMax  float64 `json:"revenue_max" validate:"min=0"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	campaign := models.Campaign{
		BankerID:    banker.ID,
		Name:        input.Name,
		Description: input.Description,
		Status:      "draft",
		Industry:    input.Industry,
		Geography:   input.Geography,
		EBITDAMin:   input.EBITDAMin,
		EBITDAMax:   input.EBITDAMax,
		RevenueMin:  input.RevenueMin,
		RevenueMax:  input.RevenueMax,
	}
	if err := cc.DB.Create(&campaign).Error; err != nil {
		cc.Logger.Printf("Failed to create campaign: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

// GetCampaigns lists the banker's campaigns. GET /api/v1/campaigns
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	var campaigns []models.Campaign
	if err := cc.DB.Where("banker_id = ?", banker.ID).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", nil)
	}
	return c.JSON(campaigns)
}

// GetCampaign returns one campaign with its companies.
// GET /api/v1/campaigns/:id
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.Preload("Companies").
		Where("id = ? AND banker_id = ?", campaignID, banker.ID).
		First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	return c.JSON(campaign)
}

// UpdateCampaign updates campaign details and status.
// PUT /api/v1/campaigns/:id
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND banker_id = ?", campaignID, banker.ID).
		First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status" validate:"omitempty,oneof=draft active paused completed"`
		Industry    *string `json:"industry"`
		Geography   *string `json:"geography"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Industry != nil {
		updates["industry"] = *input.Industry
	}
	if input.Geography != nil {
		updates["geography"] = *input.Geography
	}
	if len(updates) > 0 {
		if err := cc.DB.Model(&campaign).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", nil)
		}
	}
	return c.JSON(campaign)
}

// DeleteCampaign removes a campaign. DELETE /api/v1/campaigns/:id
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	campaignID := utils.ParseUint(c.Params("id"))

	result := cc.DB.Where("id = ? AND banker_id = ?", campaignID, banker.ID).
		Delete(&models.Campaign{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", nil)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	return c.JSON(fiber.Map{"message": "Campaign deleted"})
}

// SyncCompanies pulls prospect companies from the lead provider using
// the campaign's target criteria, skipping names already present.
// POST /api/v1/campaigns/:id/sync
func (cc *CampaignController) SyncCompanies(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND banker_id = ?", campaignID, banker.ID).
		First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	results, err := cc.Apollo.SearchCompanies(c.Context(), utils.CompanySearchCriteria{
		Industry:  campaign.Industry,
		Geography: campaign.Geography,
	})
	if err != nil {
		cc.Logger.Printf("Lead provider sync failed for campaign %d: %v", campaign.ID, err)
		if utils.IsExternalApi(err) {
			return utils.ErrorResponse(c, fiber.StatusBadGateway, "Lead provider sync failed", err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Lead provider sync failed", nil)
	}

	added := 0
	for _, r := range results {
		var existing models.SellerCompany
		err := cc.DB.Where("campaign_id = ? AND name = ?", campaign.ID, r.Name).
			First(&existing).Error
		if err == nil {
			continue
		}
		company := models.SellerCompany{
			CampaignID:   campaign.ID,
			Name:         r.Name,
			Industry:     r.Industry,
			Location:     r.Location,
			Website:      r.Website,
			ContactPhone: r.Phone,
			ContactName:  r.ContactName,
			ContactTitle: r.ContactTitle,
			ContactEmail: r.ContactEmail,
			Source:       "apollo",
			Status:       "not_contacted",
		}
		if err := cc.DB.Create(&company).Error; err != nil {
			cc.Logger.Printf("Failed to insert synced company %q: %v", r.Name, err)
			continue
		}
		added++
	}

	now := time.Now()
	cc.DB.Model(&campaign).Updates(map[string]interface{}{
		"last_synced_at": &now,
		"company_count":  gorm.Expr("company_count + ?", added),
	})

	return c.JSON(fiber.Map{
		"message":  "Sync completed",
		"fetched":  len(results),
		"added":    added,
		"campaign": campaign.ID,
	})
}
