package controller

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CallController owns the call lifecycle: a Call row is created before
// the voice session starts, transcript events append messages while the
// call runs, and finalize records the duration and triggers analysis.
type CallController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Vapi     *utils.VapiClient
	LLM      *utils.OpenRouterClient
	Calendar *utils.MetorialClient
}

func NewCallController(db *gorm.DB, logger *log.Logger) *CallController {
	return &CallController{
		DB:       db,
		Logger:   logger,
		Vapi:     utils.NewVapiClient(),
		LLM:      utils.NewOpenRouterClient(),
		Calendar: utils.NewMetorialClient(),
	}
}

// CreateCall inserts the Call row that anchors an upcoming voice
// session. It must exist before dialing so asynchronous platform events
// have a stable id to correlate against.
func (cc *CallController) CreateCall(sellerCompanyID, bankerID uint) (*models.Call, error) {
	var company models.SellerCompany
	if err := cc.DB.First(&company, sellerCompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("seller company", sellerCompanyID)
		}
		return nil, &utils.PersistenceError{Op: "load seller company", Err: err}
	}

	var banker models.Banker
	if err := cc.DB.First(&banker, bankerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("banker", bankerID)
		}
		return nil, &utils.PersistenceError{Op: "load banker", Err: err}
	}

	call := &models.Call{
		SellerCompanyID: company.ID,
		BankerID:        banker.ID,
		CallDate:        time.Now(),
		Duration:        0,
		AnalysisStatus:  models.AnalysisPending,
	}
	if err := cc.DB.Create(call).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "create call", Err: err}
	}
	return call, nil
}

// CreateMessage appends one transcript turn. Failures are logged and
// swallowed: losing a fragment must never abort an in-progress call.
func (cc *CallController) CreateMessage(callID uint, role, transcript string, timestamp time.Time) {
	var count int64
	if err := cc.DB.Model(&models.Call{}).Where("id = ?", callID).Count(&count).Error; err != nil || count == 0 {
		cc.Logger.Printf("Dropping transcript fragment for unknown call %d", callID)
		return
	}

	// Sequence breaks ties between fragments sharing a platform
	// timestamp. Assigned inside the insert so concurrent fragments
	// cannot draw the same number.
	now := time.Now()
	err := cc.DB.Model(&models.CallMessage{}).Create(map[string]interface{}{
		"call_id":    callID,
		"role":       role,
		"transcript": transcript,
		"timestamp":  timestamp,
		"sequence":   gorm.Expr("(SELECT COALESCE(MAX(m.sequence), 0) + 1 FROM call_messages m WHERE m.call_id = ?)", callID),
		"created_at": now,
		"updated_at": now,
	}).Error
	if err != nil {
		cc.Logger.Printf("Failed to persist transcript fragment for call %d: %v", callID, err)
	}
}

// FinalizeResult reports the outcome of a finalize. Success covers the
// duration write only; a failed analysis is surfaced as AnalysisError
// without flipping Success, because losing the AI summary is acceptable
// and losing the recorded duration is not.
type FinalizeResult struct {
	Success          bool          `json:"success"`
	AlreadyFinalized bool          `json:"already_finalized,omitempty"`
	Duration         int           `json:"duration"`
	Analysis         *CallAnalysis `json:"analysis,omitempty"`
	AnalysisError    string        `json:"analysis_error,omitempty"`
}

// FinalizeCall records the rounded duration and runs the analyzer. A
// second finalize (browser call-end racing the platform's
// end-of-call-report) is a logged no-op.
func (cc *CallController) FinalizeCall(callID uint, durationMinutes float64) (*FinalizeResult, error) {
	var call models.Call
	if err := cc.DB.First(&call, callID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("call", callID)
		}
		return nil, &utils.PersistenceError{Op: "load call", Err: err}
	}

	rounded := int(math.Round(durationMinutes))
	if rounded < 0 {
		rounded = 0
	}

	// Conditional write so two racing finalizes cannot both win; the
	// loser sees zero rows affected and keeps the recorded duration.
	res := cc.DB.Model(&models.Call{}).
		Where("id = ? AND finalized_at IS NULL", callID).
		Updates(map[string]interface{}{
			"duration":     rounded,
			"finalized_at": time.Now(),
		})
	if res.Error != nil {
		return nil, &utils.PersistenceError{Op: "finalize call", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		cc.DB.First(&call, callID)
		cc.Logger.Printf("Call %d already finalized, ignoring duplicate finalize", callID)
		return &FinalizeResult{Success: true, AlreadyFinalized: true, Duration: call.Duration}, nil
	}

	result := &FinalizeResult{Success: true, Duration: rounded}

	analysis, err := cc.AnalyzeCall(callID)
	if err != nil {
		cc.Logger.Printf("Analysis failed for call %d: %v", callID, err)
		cc.DB.Model(&call).Updates(map[string]interface{}{
			"analysis_status":   models.AnalysisFailed,
			"analysis_attempts": gorm.Expr("analysis_attempts + 1"),
		})
		result.AnalysisError = err.Error()
		return result, nil
	}

	result.Analysis = analysis
	return result, nil
}

// --- HTTP handlers ---

// StartPhoneCall creates a Call and dials the prospect through the
// voice platform. POST /api/v1/calls
func (cc *CallController) StartPhoneCall(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	var input struct {
		SellerCompanyID uint `json:"seller_company_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var company models.SellerCompany
	if err := bankerCompanies(cc.DB, banker.ID).
		Select("seller_companies.*").
		Where("seller_companies.id = ?", input.SellerCompanyID).
		First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Seller company not found", nil)
	}
	if company.ContactPhone == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Company has no contact phone number", nil)
	}

	call, err := cc.CreateCall(company.ID, banker.ID)
	if err != nil {
		if utils.IsNotFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
		}
		cc.Logger.Printf("Failed to create call: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create call", nil)
	}

	assistant := cc.buildAssistant(&company, banker)
	externalID, err := cc.Vapi.CreateCall(c.Context(), company.ContactPhone, assistant)
	if err != nil {
		// Compensating action: the platform rejected the dial, so the
		// Call row would otherwise sit orphaned forever.
		if derr := cc.DB.Unscoped().Delete(&models.CallMessage{}, "call_id = ?", call.ID).Error; derr != nil {
			cc.Logger.Printf("Cleanup of call %d messages failed: %v", call.ID, derr)
		}
		if derr := cc.DB.Unscoped().Delete(&models.Call{}, call.ID).Error; derr != nil {
			cc.Logger.Printf("Cleanup of orphaned call %d failed: %v", call.ID, derr)
		}
		cc.Logger.Printf("Voice platform rejected call to company %d: %v", company.ID, err)
		if utils.IsExternalApi(err) {
			return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to start call", err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start call", nil)
	}

	if err := cc.DB.Model(call).Update("external_id", externalID).Error; err != nil {
		cc.Logger.Printf("Failed to store external id for call %d: %v", call.ID, err)
	}

	cc.recordContact(&company)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Call started",
		"call":        call,
		"external_id": externalID,
	})
}

// StartWebCall creates a Call for a browser-initiated (WebRTC) session
// and hands the assistant payload to the client SDK. The session itself
// is established by the browser; its events arrive on the events
// endpoint. POST /api/v1/calls/web
func (cc *CallController) StartWebCall(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	var input struct {
		SellerCompanyID uint `json:"seller_company_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var company models.SellerCompany
	if err := bankerCompanies(cc.DB, banker.ID).
		Select("seller_companies.*").
		Where("seller_companies.id = ?", input.SellerCompanyID).
		First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Seller company not found", nil)
	}

	call, err := cc.CreateCall(company.ID, banker.ID)
	if err != nil {
		if utils.IsNotFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create call", nil)
	}

	cc.recordContact(&company)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"call":      call,
		"assistant": cc.buildAssistant(&company, banker),
	})
}

// HandleCallEvents is the browser-session twin of the voice webhook:
// the client SDK forwards transcript/tool-call events here and they run
// through the same normalization path. POST /api/v1/calls/:id/events
func (cc *CallController) HandleCallEvents(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	callID := utils.ParseUint(c.Params("id"))

	var call models.Call
	if err := cc.DB.Where("id = ? AND banker_id = ?", callID, banker.ID).
		First(&call).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Call not found", nil)
	}

	ev, externalID, err := parseVoiceEnvelope(c.Body())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event payload", err)
	}

	// The client's call-start event carries the platform call id; store
	// it so late webhook events for the same session still correlate.
	if externalID != "" && call.ExternalID == nil {
		if err := cc.DB.Model(&call).Update("external_id", externalID).Error; err != nil {
			cc.Logger.Printf("Failed to store external id for call %d: %v", call.ID, err)
		}
	}

	ack := fiber.Map{"received": true}
	if results := cc.applyVoiceEvent(&call, ev); results != nil {
		ack["results"] = results
	}
	return c.JSON(ack)
}

// EndWebCall finalizes a browser-initiated call.
// POST /api/v1/calls/:id/end
func (cc *CallController) EndWebCall(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	callID := utils.ParseUint(c.Params("id"))

	var input struct {
		DurationSeconds float64 `json:"duration_seconds" validate:"min=0"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var count int64
	cc.DB.Model(&models.Call{}).
		Where("id = ? AND banker_id = ?", callID, banker.ID).
		Count(&count)
	if count == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Call not found", nil)
	}

	result, err := cc.FinalizeCall(callID, input.DurationSeconds/60.0)
	if err != nil {
		if utils.IsNotFound(err) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Call not found", nil)
		}
		cc.Logger.Printf("Failed to finalize call %d: %v", callID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to finalize call", nil)
	}

	return c.JSON(result)
}

// GetCalls lists the banker's calls, most recent first.
// GET /api/v1/calls
func (cc *CallController) GetCalls(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	if limit > 100 {
		limit = 100
	}

	var calls []models.Call
	var total int64
	query := cc.DB.Model(&models.Call{}).Where("banker_id = ?", banker.ID)
	query.Count(&total)
	if err := query.Order("call_date DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&calls).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch calls", nil)
	}

	return c.JSON(utils.PaginatedResponse{Data: calls, Total: total, Page: page, Limit: limit})
}

// GetCall returns one call with its transcript in conversational order.
// GET /api/v1/calls/:id
func (cc *CallController) GetCall(c *fiber.Ctx) error {
	banker := c.Locals("banker").(*models.Banker)
	callID := utils.ParseUint(c.Params("id"))

	var call models.Call
	if err := cc.DB.
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, sequence ASC")
		}).
		Where("id = ? AND banker_id = ?", callID, banker.ID).
		First(&call).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Call not found", nil)
	}

	return c.JSON(call)
}

// recordContact bumps the company's outreach bookkeeping when a call is
// placed.
func (cc *CallController) recordContact(company *models.SellerCompany) {
	updates := map[string]interface{}{"last_contact_date": time.Now()}
	if company.Status == "not_contacted" {
		updates["status"] = "contacted"
	}
	if err := cc.DB.Model(company).Updates(updates).Error; err != nil {
		cc.Logger.Printf("Failed to update contact bookkeeping for company %d: %v", company.ID, err)
	}
	cc.DB.Model(&models.Campaign{}).
		Where("id = ?", company.CampaignID).
		Update("call_count", gorm.Expr("call_count + 1"))
}

// buildAssistant shapes the voice platform's assistant payload for a
// prospect call.
func (cc *CallController) buildAssistant(company *models.SellerCompany, banker *models.Banker) utils.VapiAssistant {
	contactName := company.ContactName
	if contactName == "" {
		contactName = "the owner"
	}

	systemPrompt := fmt.Sprintf(
		"You are an associate calling on behalf of %s, an investment banker at %s. "+
			"You are reaching out to %s at %s (%s, %s) to gauge interest in a potential sale of the business. "+
			"Be professional and concise. If the prospect shows interest, offer to schedule a meeting with %s "+
			"using the find_meeting_slots and book_meeting_slot tools. "+
			"If they are not interested, thank them politely and end the call.",
		banker.Name, banker.Firm, contactName, company.Name, company.Industry, company.Location, banker.Name,
	)

	return utils.VapiAssistant{
		Transcriber: map[string]interface{}{
			"provider": "deepgram",
			"model":    "nova-2",
			"language": "en",
		},
		Model: utils.VapiModel{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.7,
			Messages: []utils.VapiModelMessage{
				{Role: "system", Content: systemPrompt},
			},
			Tools: []utils.VapiTool{
				{
					Type: "function",
					Function: utils.VapiToolFunction{
						Name:        "find_meeting_slots",
						Description: "Find available meeting slots on the banker's calendar",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"duration_minutes": map[string]interface{}{"type": "number", "description": "Meeting length in minutes"},
								"days_ahead":       map[string]interface{}{"type": "number", "description": "How many days out to search"},
							},
						},
					},
				},
				{
					Type: "function",
					Function: utils.VapiToolFunction{
						Name:        "book_meeting_slot",
						Description: "Book one of the offered meeting slots",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"start_time": map[string]interface{}{"type": "string", "description": "Slot start time, RFC3339"},
								"title":      map[string]interface{}{"type": "string", "description": "Meeting title"},
							},
							"required": []string{"start_time"},
						},
					},
				},
			},
		},
		Voice: map[string]interface{}{
			"provider": "playht",
			"voiceId":  "jennifer",
		},
		BackgroundSound:    "office",
		MaxDurationSeconds: 900,
		Name:               fmt.Sprintf("Outreach - %s", company.Name),
		FirstMessage:       fmt.Sprintf("Hi, may I speak with %s?", contactName),
	}
}
