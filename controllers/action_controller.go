package controller

import (
	"log"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ActionController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewActionController(db *gorm.DB, logger *log.Logger) *ActionController {
	return &ActionController{DB: db, Logger: logger}
}

// bankerActions scopes action queries to the authenticated banker
// through the owning company's campaign.
func bankerActions(db *gorm.DB, bankerID uint) *gorm.DB {
	return db.Model(&models.Action{}).
		Joins("JOIN seller_companies ON seller_companies.id = actions.seller_company_id").
		Joins("JOIN campaigns ON campaigns.id = seller_companies.campaign_id").
		Where("campaigns.banker_id = ?", bankerID)
}

// CreateAction schedules a follow-up task. POST /api/v1/actions
func (ac *ActionController) CreateAction(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	var input struct {
		SellerCompanyID uint      `json:"seller_company_id" validate:"required"`
		ActionType      string    `json:"action_type" validate:"required,oneof=call email"`
		Title           string    `json:"title" validate:"required,min=2"`
		Description     string    `json:"description"`
		ScheduledFor    time.Time `json:"scheduled_for" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var company models.SellerCompany
	if err := bankerCompanies(ac.DB, banker.ID).
		Select("seller_companies.*").
		Where("seller_companies.id = ?", input.SellerCompanyID).
		First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	action := models.Action{
		SellerCompanyID: company.ID,
		ActionType:      input.ActionType,
		Title:           input.Title,
		Description:     input.Description,
		ScheduledFor:    input.ScheduledFor,
		Status:          models.ActionPending,
	}
	if err := ac.DB.Create(&action).Error; err != nil {
		ac.Logger.Printf("Failed to create action: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create action", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(action)
}

// GetActions lists actions, optionally filtered by company, status,
// or display bucket (overdue, today, upcoming). GET /api/v1/actions
func (ac *ActionController) GetActions(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	query := bankerActions(ac.DB, banker.ID)
	if companyID := c.QueryInt("company_id", 0); companyID > 0 {
		query = query.Where("actions.seller_company_id = ?", companyID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("actions.status = ?", status)
	}

	if bucket := c.Query("bucket"); bucket != "" {
		now := time.Now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.Add(24 * time.Hour)
		switch bucket {
		case models.BucketOverdue:
			query = query.Where("actions.scheduled_for < ?", startOfDay)
		case models.BucketToday:
			query = query.Where("actions.scheduled_for >= ? AND actions.scheduled_for < ?", startOfDay, endOfDay)
		case models.BucketUpcoming:
			query = query.Where("actions.scheduled_for >= ?", endOfDay)
		default:
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid bucket", nil)
		}
	}

	var actions []models.Action
	if err := query.Select("actions.*").Order("actions.scheduled_for ASC").Find(&actions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch actions", nil)
	}
	return c.JSON(fiber.Map{"actions": actions, "count": len(actions)})
}

// UpdateAction edits a pending action's details. PUT /api/v1/actions/:id
func (ac *ActionController) UpdateAction(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	actionID := utils.ParseUint(c.Params("id"))

	var action models.Action
	if err := bankerActions(ac.DB, banker.ID).
		Select("actions.*").
		Where("actions.id = ?", actionID).
		First(&action).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Action not found", nil)
	}

	var input struct {
		Title        *string    `json:"title" validate:"omitempty,min=2"`
		Description  *string    `json:"description"`
		ScheduledFor *time.Time `json:"scheduled_for"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ScheduledFor != nil {
		updates["scheduled_for"] = *input.ScheduledFor
	}
	if len(updates) > 0 {
		if err := ac.DB.Model(&action).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update action", nil)
		}
	}
	return c.JSON(action)
}

// CompleteAction marks a pending action done. Completing an already
// completed action is rejected. POST /api/v1/actions/:id/complete
func (ac *ActionController) CompleteAction(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	actionID := utils.ParseUint(c.Params("id"))

	var action models.Action
	if err := bankerActions(ac.DB, banker.ID).
		Select("actions.*").
		Where("actions.id = ?", actionID).
		First(&action).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Action not found", nil)
	}
	if action.Status != models.ActionPending {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Action is not pending", nil)
	}

	now := time.Now()
	if err := ac.DB.Model(&action).Updates(map[string]interface{}{
		"status":       models.ActionCompleted,
		"completed_at": now,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to complete action", nil)
	}
	return c.JSON(action)
}

// DeleteAction removes an action. DELETE /api/v1/actions/:id
func (ac *ActionController) DeleteAction(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	actionID := utils.ParseUint(c.Params("id"))

	var action models.Action
	if err := bankerActions(ac.DB, banker.ID).
		Select("actions.*").
		Where("actions.id = ?", actionID).
		First(&action).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Action not found", nil)
	}
	if err := ac.DB.Delete(&action).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete action", nil)
	}
	return c.JSON(fiber.Map{"message": "Action deleted"})
}
