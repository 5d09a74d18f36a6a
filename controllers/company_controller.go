package controller

import (
	"log"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CompanyController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCompanyController(db *gorm.DB, logger *log.Logger) *CompanyController {
	return &CompanyController{DB: db, Logger: logger}
}

// bankerCompanies scopes seller company queries to the authenticated
// banker through the owning campaign.
func bankerCompanies(db *gorm.DB, bankerID uint) *gorm.DB {
	return db.Model(&models.SellerCompany{}).
		Joins("JOIN campaigns ON campaigns.id = seller_companies.campaign_id").
		Where("campaigns.banker_id = ?", bankerID)
}

// CreateCompany adds a prospect manually. POST /api/v1/companies
func (cc *CompanyController) CreateCompany(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	var input struct {
		CampaignID   uint    `json:"campaign_id" validate:"required"`
		Name         string  `json:"name" validate:"required,min=2"`
		Industry     string  `json:"industry"`
		Location     string  `json:"location"`
		Website      string  `json:"website"`
		Revenue      float64 `json:"revenue" validate:"min=0"`
		EBITDA       float64 `json:"ebitda"`
		ContactName  string  `json:"contact_name"`
		ContactTitle string  `json:"contact_title"`
		ContactPhone string  `json:"contact_phone"`
		ContactEmail string  `json:"contact_email" validate:"omitempty,email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND banker_id = ?", input.CampaignID, banker.ID).
		First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	company := models.SellerCompany{
		CampaignID:   campaign.ID,
		Name:         input.Name,
		Industry:     input.Industry,
		Location:     input.Location,
		Website:      input.Website,
		Revenue:      input.Revenue,
		EBITDA:       input.EBITDA,
		ContactName:  input.ContactName,
		ContactTitle: input.ContactTitle,
		ContactPhone: input.ContactPhone,
		ContactEmail: input.ContactEmail,
		Source:       "manual",
		Status:       "not_contacted",
	}
	if err := cc.DB.Create(&company).Error; err != nil {
		cc.Logger.Printf("Failed to create company: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create company", nil)
	}

	cc.DB.Model(&campaign).Update("company_count", gorm.Expr("company_count + 1"))

	return c.Status(fiber.StatusCreated).JSON(company)
}

// GetCompanies lists companies, optionally filtered by campaign and
// status. GET /api/v1/companies
func (cc *CompanyController) GetCompanies(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if limit > 200 {
		limit = 200
	}

	query := bankerCompanies(cc.DB, banker.ID)
	if campaignID := c.QueryInt("campaign_id", 0); campaignID > 0 {
		query = query.Where("seller_companies.campaign_id = ?", campaignID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("seller_companies.status = ?", status)
	}

	var total int64
	query.Count(&total)

	var companies []models.SellerCompany
	if err := query.Select("seller_companies.*").
		Order("seller_companies.name ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&companies).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch companies", nil)
	}

	return c.JSON(utils.PaginatedResponse{Data: companies, Total: total, Page: page, Limit: limit})
}

// GetCompany returns one company with its calls and pending actions.
// GET /api/v1/companies/:id
func (cc *CompanyController) GetCompany(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	companyID := utils.ParseUint(c.Params("id"))

	var company models.SellerCompany
	if err := bankerCompanies(cc.DB, banker.ID).
		Select("seller_companies.*").
		Preload("Calls", func(db *gorm.DB) *gorm.DB {
			return db.Order("call_date DESC")
		}).
		Preload("Actions", "status = ?", models.ActionPending).
		Where("seller_companies.id = ?", companyID).
		First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}
	return c.JSON(utils.SuccessResponse(company))
}

// UpdateCompany updates prospect details and status.
// PUT /api/v1/companies/:id
func (cc *CompanyController) UpdateCompany(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	companyID := utils.ParseUint(c.Params("id"))

	var company models.SellerCompany
	if err := bankerCompanies(cc.DB, banker.ID).
		Select("seller_companies.*").
		Where("seller_companies.id = ?", companyID).
		First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	var input struct {
		Status       *string `json:"status" validate:"omitempty,oneof=not_contacted contacted meeting_scheduled not_interested"`
		ContactName  *string `json:"contact_name"`
		ContactTitle *string `json:"contact_title"`
		ContactPhone *string `json:"contact_phone"`
		ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updates := map[string]interface{}{}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.ContactName != nil {
		updates["contact_name"] = *input.ContactName
	}
	if input.ContactTitle != nil {
		updates["contact_title"] = *input.ContactTitle
	}
	if input.ContactPhone != nil {
		updates["contact_phone"] = *input.ContactPhone
	}
	if input.ContactEmail != nil {
		updates["contact_email"] = *input.ContactEmail
	}
	if len(updates) > 0 {
		if err := cc.DB.Model(&company).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update company", nil)
		}
	}
	return c.JSON(company)
}
