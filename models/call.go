package models

import (
	"time"

	"gorm.io/gorm"
)

// Call outcomes assigned by the post-call analyzer.
const (
	OutcomeProductive       = "productive"
	OutcomeNoAnswer         = "no_answer"
	OutcomeVoicemail        = "voicemail"
	OutcomeScheduledMeeting = "scheduled_meeting"
	OutcomeNotInterested    = "not_interested"
)

// Analysis states for a finalized call. The duration write and the
// analysis write are two separate steps; the status makes the second
// step retryable.
const (
	AnalysisPending   = "pending"
	AnalysisCompleted = "completed"
	AnalysisFailed    = "failed"
)

// Transcript roles.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
)

// Call is one voice interaction with a prospect, created before the
// voice session starts so asynchronous platform events have a stable id
// to correlate against.
type Call struct {
	gorm.Model
	SellerCompanyID uint `gorm:"not null;index" json:"seller_company_id"`
	BankerID        uint `gorm:"not null;index" json:"banker_id"`

	// ExternalID is the voice platform's call id. Unique so a webhook
	// event maps to at most one row. Null until the platform confirms
	// the session.
	ExternalID *string `gorm:"uniqueIndex" json:"external_id"`

	CallDate time.Time `gorm:"not null" json:"call_date"`
	Duration int       `gorm:"default:0" json:"duration"` // minutes, 0 until finalized
	Outcome  *string   `json:"outcome"`
	Summary  *string   `json:"summary"`
	Notes    string    `gorm:"type:text" json:"notes"`

	AnalysisStatus   string     `gorm:"default:'pending'" json:"analysis_status"`
	AnalysisAttempts int        `gorm:"default:0" json:"analysis_attempts"`
	FinalizedAt      *time.Time `json:"finalized_at"`

	// Relations
	SellerCompany SellerCompany `json:"-"`
	Banker        Banker        `json:"-"`
	Messages      []CallMessage `gorm:"foreignKey:CallID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// IsFinalized reports whether the call has gone through its terminal
// finalize transition.
func (c *Call) IsFinalized() bool {
	return c.FinalizedAt != nil
}

// CallMessage is one transcript turn within a call. Immutable once
// created. Sequence is assigned at persistence time and breaks ties
// between messages carrying the same platform timestamp, since the
// platform may deliver fragments out of order.
type CallMessage struct {
	gorm.Model
	CallID uint `gorm:"not null;index" json:"call_id"`

	Role       string    `gorm:"not null" json:"role"` // assistant, user, system
	Transcript string    `gorm:"type:text;not null" json:"transcript"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
	Sequence   int       `gorm:"not null;default:0" json:"sequence"`

	// Relations
	Call Call `json:"-"`
}
