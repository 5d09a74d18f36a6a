package controller

import (
	"log"
	"time"

	"dealdialer/models"
	"dealdialer/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

type DashboardStats struct {
	TotalCampaigns   int64            `json:"total_campaigns"`
	ActiveCampaigns  int64            `json:"active_campaigns"`
	TotalCompanies   int64            `json:"total_companies"`
	TotalCalls       int64            `json:"total_calls"`
	CallsByOutcome   map[string]int64 `json:"calls_by_outcome"`
	MeetingsBooked   int64            `json:"meetings_booked"`
	PendingActions   int64            `json:"pending_actions"`
	OverdueActions   int64            `json:"overdue_actions"`
	TotalCallMinutes int64            `json:"total_call_minutes"`
}

// GetDashboardStats returns the summary cards for the home screen.
// GET /api/v1/dashboard/stats
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	bankerID := c.Locals("bankerID").(uint)
	timeFrame := c.Query("time_frame", "month") // day, week, month, all

	now := time.Now()
	var startTime time.Time
	switch timeFrame {
	case "day":
		startTime = now.Add(-24 * time.Hour)
	case "week":
		startTime = now.Add(-7 * 24 * time.Hour)
	case "month":
		startTime = now.Add(-30 * 24 * time.Hour)
	case "all":
		// zero time: no lower bound
	default:
		startTime = now.Add(-30 * 24 * time.Hour)
	}

	stats := DashboardStats{CallsByOutcome: map[string]int64{}}

	dc.DB.Model(&models.Campaign{}).Where("banker_id = ?", bankerID).Count(&stats.TotalCampaigns)
	dc.DB.Model(&models.Campaign{}).Where("banker_id = ? AND status = ?", bankerID, "active").Count(&stats.ActiveCampaigns)
	dc.DB.Model(&models.SellerCompany{}).
		Joins("JOIN campaigns ON campaigns.id = seller_companies.campaign_id").
		Where("campaigns.banker_id = ?", bankerID).
		Count(&stats.TotalCompanies)

	callQuery := dc.DB.Model(&models.Call{}).Where("calls.banker_id = ?", bankerID)
	if !startTime.IsZero() {
		callQuery = callQuery.Where("calls.call_date >= ?", startTime)
	}
	callQuery.Count(&stats.TotalCalls)

	var outcomeRows []struct {
		Outcome string
		Count   int64
	}
	outcomeQuery := dc.DB.Model(&models.Call{}).
		Select("outcome, COUNT(*) as count").
		Where("banker_id = ? AND outcome IS NOT NULL", bankerID)
	if !startTime.IsZero() {
		outcomeQuery = outcomeQuery.Where("call_date >= ?", startTime)
	}
	if err := outcomeQuery.Group("outcome").Scan(&outcomeRows).Error; err != nil {
		dc.Logger.Printf("Failed to aggregate call outcomes: %v", err)
	}
	for _, row := range outcomeRows {
		stats.CallsByOutcome[row.Outcome] = row.Count
	}

	var minuteTotal struct{ Total int64 }
	minuteQuery := dc.DB.Model(&models.Call{}).
		Select("COALESCE(SUM(duration), 0) as total").
		Where("banker_id = ?", bankerID)
	if !startTime.IsZero() {
		minuteQuery = minuteQuery.Where("call_date >= ?", startTime)
	}
	minuteQuery.Scan(&minuteTotal)
	stats.TotalCallMinutes = minuteTotal.Total

	meetingQuery := dc.DB.Model(&models.Meeting{}).Where("banker_id = ?", bankerID)
	if !startTime.IsZero() {
		meetingQuery = meetingQuery.Where("created_at >= ?", startTime)
	}
	meetingQuery.Count(&stats.MeetingsBooked)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	pendingActions := func() *gorm.DB {
		return dc.DB.Model(&models.Action{}).
			Joins("JOIN seller_companies ON seller_companies.id = actions.seller_company_id").
			Joins("JOIN campaigns ON campaigns.id = seller_companies.campaign_id").
			Where("campaigns.banker_id = ? AND actions.status = ?", bankerID, models.ActionPending)
	}
	pendingActions().Count(&stats.PendingActions)
	pendingActions().Where("actions.scheduled_for < ?", startOfDay).Count(&stats.OverdueActions)

	return c.JSON(stats)
}

type RecentCall struct {
	ID          uint      `json:"id"`
	CompanyName string    `json:"company_name"`
	CallDate    time.Time `json:"call_date"`
	Duration    int       `json:"duration"`
	Outcome     *string   `json:"outcome"`
	Summary     *string   `json:"summary"`
}

// GetRecentCalls returns the most recent calls with their prospect, for
// the dashboard activity feed. GET /api/v1/dashboard/recent-calls
func (dc *DashboardController) GetRecentCalls(c *fiber.Ctx) error {
	bankerID := c.Locals("bankerID").(uint)
	limit := c.QueryInt("limit", 10)
	if limit > 50 {
		limit = 50
	}

	var calls []RecentCall
	if err := dc.DB.Model(&models.Call{}).
		Select("calls.id, seller_companies.name as company_name, calls.call_date, calls.duration, calls.outcome, calls.summary").
		Joins("JOIN seller_companies ON seller_companies.id = calls.seller_company_id").
		Where("calls.banker_id = ?", bankerID).
		Order("calls.call_date DESC").
		Limit(limit).
		Scan(&calls).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch recent calls", nil)
	}
	return c.JSON(fiber.Map{"calls": calls, "count": len(calls)})
}
