package models

import (
	"time"

	"gorm.io/gorm"
)

// Action statuses. pending -> completed is the only legal transition.
const (
	ActionPending   = "pending"
	ActionCompleted = "completed"
)

// Action types.
const (
	ActionTypeCall  = "call"
	ActionTypeEmail = "email"
)

// Display buckets computed against the current time.
const (
	BucketOverdue  = "overdue"
	BucketToday    = "today"
	BucketUpcoming = "upcoming"
)

// Action is a scheduled follow-up task (call or email) against a seller
// company, independent of any specific Call.
type Action struct {
	gorm.Model
	SellerCompanyID uint `gorm:"not null;index" json:"seller_company_id"`

	ActionType   string     `gorm:"not null" json:"action_type"` // call, email
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	ScheduledFor time.Time  `gorm:"not null;index" json:"scheduled_for"`
	Status       string     `gorm:"default:'pending'" json:"status"`
	CompletedAt  *time.Time `json:"completed_at"`

	// Relations
	SellerCompany SellerCompany `json:"-"`
}

// Bucket classifies the action for display relative to now: overdue
// (scheduled before today), today, or upcoming.
func (a *Action) Bucket(now time.Time) string {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)
	switch {
	case a.ScheduledFor.Before(startOfDay):
		return BucketOverdue
	case a.ScheduledFor.Before(endOfDay):
		return BucketToday
	default:
		return BucketUpcoming
	}
}

// Meeting is a calendar meeting booked with a prospect, either through
// the live-call tool flow or the scheduling UI. The authoritative event
// lives in the banker's calendar; this row is local bookkeeping.
type Meeting struct {
	gorm.Model
	SellerCompanyID uint `gorm:"not null;index" json:"seller_company_id"`
	BankerID        uint `gorm:"not null;index" json:"banker_id"`

	Title          string    `gorm:"not null" json:"title"`
	StartTime      time.Time `gorm:"not null" json:"start_time"`
	EndTime        time.Time `gorm:"not null" json:"end_time"`
	ConfirmationID string    `gorm:"index" json:"confirmation_id"`
	CalendarRef    string    `json:"calendar_ref"` // event id at the calendar provider, empty for stubbed bookings

	// Relations
	SellerCompany SellerCompany `json:"-"`
	Banker        Banker        `json:"-"`
}
