package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Banker is the authenticated user of the platform: the deal-team member
// running outreach campaigns and taking calls.
type Banker struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Title        string `json:"title"`
	Firm         string `json:"firm"`
	Phone        string `json:"phone"`

	// GoogleID links the account to a Google login. Accounts created
	// through OAuth carry an empty password hash and authenticate only
	// via Google.
	GoogleID *string `gorm:"uniqueIndex" json:"-"`

	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:BankerID" json:"campaigns,omitempty"`
	Calls     []Call     `gorm:"foreignKey:BankerID" json:"calls,omitempty"`
}

// SetPassword hashes and stores the plaintext password.
func (b *Banker) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	b.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the plaintext password against the stored hash.
func (b *Banker) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(b.PasswordHash), []byte(plain)) == nil
}

// RefreshToken stores issued refresh tokens so they can be revoked.
type RefreshToken struct {
	gorm.Model
	BankerID  uint       `gorm:"not null;index" json:"banker_id"`
	Token     string     `gorm:"not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}
