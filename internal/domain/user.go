package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform identifies an external identity provider.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGoogle Platform = "google"
)

// SignupAttribution records where a signup came from. Stored as jsonb.
type SignupAttribution struct {
	Intent      string `json:"intent,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

type User struct {
	ID                string             `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string             `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified     bool               `gorm:"not null;default:false" json:"email_verified"`
	AvatarURL         string             `gorm:"type:text" json:"avatar_url"`
	SignupAttribution *SignupAttribution `gorm:"type:jsonb;serializer:json" json:"signup_attribution,omitempty"`
	PayoutAccountID   *string            `gorm:"type:uuid;index" json:"payout_account_id,omitempty"`
	LinkedAccounts    []LinkedAccount    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"linked_accounts,omitempty"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// LinkedAccount binds one external-provider identity to one local user.
// A (platform, remote_id) pair maps to at most one user; the unique
// index is the source of truth under concurrent sign-ins.
type LinkedAccount struct {
	ID                    string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                string     `gorm:"type:uuid;index;not null" json:"user_id"`
	Platform              Platform   `gorm:"type:text;not null;uniqueIndex:idx_linked_platform_remote" json:"platform"`
	RemoteID              string     `gorm:"type:text;not null;uniqueIndex:idx_linked_platform_remote" json:"remote_id"`
	Username              string     `gorm:"type:text;index" json:"username"`
	Email                 string     `gorm:"type:text" json:"email"`
	AccessToken           string     `gorm:"type:text" json:"-"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	RefreshToken          string     `gorm:"type:text" json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LinkedAccount) TableName() string { return "linked_accounts" }

func (a *LinkedAccount) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
