package controller

import (
	"log"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeetingController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Calendar *utils.MetorialClient
}

func NewMeetingController(db *gorm.DB, logger *log.Logger) *MeetingController {
	return &MeetingController{
		DB:       db,
		Logger:   logger,
		Calendar: utils.NewMetorialClient(),
	}
}

// GetSlots returns open meeting slots over the next business days,
// filtered against the banker's calendar when one is connected.
// GET /api/v1/meetings/slots
func (mc *MeetingController) GetSlots(c *fiber.Ctx) error {
	days := c.QueryInt("days", 5)
	if days < 1 || days > 14 {
		days = 5
	}
	durationMin := c.QueryInt("duration", 30)
	if durationMin < 15 || durationMin > 120 {
		durationMin = 30
	}
	duration := time.Duration(durationMin) * time.Minute

	now := time.Now()
	var busy []utils.BusyInterval
	if mc.Calendar.HasSession() {
		intervals, err := mc.Calendar.GetFreeBusy(c.Context(), now, now.AddDate(0, 0, days+1))
		if err != nil {
			mc.Logger.Printf("Free/busy lookup failed, offering default slots: %v", err)
		} else {
			busy = intervals
		}
	}

	slots := candidateSlots(now, days, duration, busy)
	out := make([]fiber.Map, 0, len(slots))
	for _, s := range slots {
		out = append(out, fiber.Map{
			"start": s.Format(time.RFC3339),
			"end":   s.Add(duration).Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"slots": out})
}

// CreateMeeting books a meeting with a prospect from the scheduling UI.
// POST /api/v1/meetings
func (mc *MeetingController) CreateMeeting(c *fiber.Ctx) error {
	bankerID := c.Locals("bankerID").(uint)

	var input struct {
		SellerCompanyID uint   `json:"seller_company_id" validate:"required"`
		Title           string `json:"title"`
		StartTime       string `json:"start_time" validate:"required"`
		DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=15,max=120"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	start, err := time.Parse(time.RFC3339, input.StartTime)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "start_time must be RFC3339", err)
	}
	if input.DurationMinutes == 0 {
		input.DurationMinutes = 30
	}
	end := start.Add(time.Duration(input.DurationMinutes) * time.Minute)

	var company models.SellerCompany
	if err := bankerCompanies(mc.DB, bankerID).
		Select("seller_companies.*").
		Where("seller_companies.id = ?", input.SellerCompanyID).
		First(&company).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Company not found", nil)
	}

	title := input.Title
	if title == "" {
		title = "Introductory call with " + company.Name
	}

	var calendarRef string
	if mc.Calendar.HasSession() {
		ref, err := mc.Calendar.CreateEvent(c.Context(), title, start, end, company.ContactEmail)
		if err != nil {
			mc.Logger.Printf("Calendar booking failed, recording meeting locally: %v", err)
		} else {
			calendarRef = ref
		}
	}

	meeting := models.Meeting{
		SellerCompanyID: company.ID,
		BankerID:        bankerID,
		Title:           title,
		StartTime:       start,
		EndTime:         end,
		ConfirmationID:  uuid.NewString()[:8],
		CalendarRef:     calendarRef,
	}
	if err := mc.DB.Create(&meeting).Error; err != nil {
		mc.Logger.Printf("Failed to create meeting: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create meeting", nil)
	}

	mc.DB.Model(&company).Update("status", "meeting_scheduled")
	mc.DB.Model(&models.Campaign{}).Where("id = ?", company.CampaignID).
		Update("meeting_count", gorm.Expr("meeting_count + 1"))

	return c.Status(fiber.StatusCreated).JSON(meeting)
}

// GetMeetings lists booked meetings, upcoming first. When the banker's
// calendar is connected the provider's view of the window is attached
// alongside the local rows. GET /api/v1/meetings
func (mc *MeetingController) GetMeetings(c *fiber.Ctx) error {
	bankerID := c.Locals("bankerID").(uint)

	var meetings []models.Meeting
	if err := mc.DB.Where("banker_id = ?", bankerID).
		Order("start_time ASC").
		Find(&meetings).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch meetings", nil)
	}

	resp := fiber.Map{"meetings": meetings, "count": len(meetings)}
	if mc.Calendar.HasSession() {
		now := time.Now()
		if events, err := mc.Calendar.ListEvents(c.Context(), now, now.AddDate(0, 0, 14)); err == nil {
			resp["calendar_events"] = events
		} else {
			mc.Logger.Printf("Calendar listing failed: %v", err)
		}
	}
	return c.JSON(resp)
}
