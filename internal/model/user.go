package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents an account in the system. Local accounts carry a password
// hash, Google accounts carry a google_id; an account migrated from local to
// Google carries both.
type User struct {
	ID           uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	GoogleID     *string         `json:"-" gorm:"uniqueIndex;size:64"`
	Name         string          `json:"name" gorm:"size:255;not null"`
	Email        string          `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash *string         `json:"-" gorm:"size:255"` // Never expose in JSON
	Avatar       *string         `json:"avatar,omitempty" gorm:"size:512"`
	Balance      decimal.Decimal `json:"balance" gorm:"type:decimal(19,4);not null;default:0"`

	ReferralCode  string     `json:"referral_code" gorm:"uniqueIndex;size:16;not null"`
	ReferredByID  *uuid.UUID `json:"referred_by,omitempty" gorm:"type:char(36);index"`
	ReferralCount int        `json:"referral_count" gorm:"not null;default:0"`
	Referrals     []User     `json:"referrals,omitempty" gorm:"foreignKey:ReferredByID"`

	// Single active reset token; cleared on consumption or rollback.
	ResetToken          *string    `json:"-" gorm:"uniqueIndex;size:64"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	IsAdmin   bool           `json:"is_admin" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasPassword reports whether the user can log in with local credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
