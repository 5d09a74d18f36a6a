package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign represents one M&A outreach campaign: a set of target
// criteria plus the seller companies synced in from the lead provider.
type Campaign struct {
	gorm.Model
	BankerID uint `gorm:"not null;index" json:"banker_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, paused, completed

	// Target criteria used when syncing companies from the lead provider
	Industry   string  `json:"industry"`
	Geography  string  `json:"geography"`
	EBITDAMin  float64 `json:"ebitda_min"`
	EBITDAMax  float64 `json:"ebitda_max"`
	RevenueMin float64 `json:"revenue_min"`
	RevenueMax float64 `json:"revenue_max"`

	LastSyncedAt *time.Time `json:"last_synced_at"`

	// Statistics (denormalized for performance)
	CompanyCount int `gorm:"default:0" json:"company_count"`
	CallCount    int `gorm:"default:0" json:"call_count"`
	MeetingCount int `gorm:"default:0" json:"meeting_count"`

	// Relations
	Banker    Banker          `json:"-"`
	Companies []SellerCompany `gorm:"foreignKey:CampaignID" json:"companies,omitempty"`
}

// SellerCompany is a prospect synced from the lead provider (or entered
// manually): the potential seller the banker is calling.
type SellerCompany struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	Name     string  `gorm:"not null;index" json:"name"`
	Industry string  `json:"industry"`
	Location string  `json:"location"`
	Website  string  `json:"website"`
	Revenue  float64 `json:"revenue"`
	EBITDA   float64 `json:"ebitda"`

	// Primary contact at the company
	ContactName  string `json:"contact_name"`
	ContactTitle string `json:"contact_title"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`

	Source          string     `gorm:"default:'manual'" json:"source"`        // manual, apollo
	Status          string     `gorm:"default:'not_contacted'" json:"status"` // not_contacted, contacted, meeting_scheduled, not_interested
	LastContactDate *time.Time `json:"last_contact_date"`

	// Relations
	Campaign Campaign `json:"-"`
	Calls    []Call   `gorm:"foreignKey:SellerCompanyID" json:"calls,omitempty"`
	Actions  []Action `gorm:"foreignKey:SellerCompanyID" json:"actions,omitempty"`
}
