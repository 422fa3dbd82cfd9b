package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountType is the payout rail backing a payout account.
type AccountType string

const (
	AccountTypeStripe         AccountType = "stripe"
	AccountTypeOpenCollective AccountType = "open_collective"
)

func (t AccountType) DisplayName() string {
	switch t {
	case AccountTypeStripe:
		return "Stripe"
	case AccountTypeOpenCollective:
		return "Open Collective"
	default:
		return string(t)
	}
}

// PayoutAccount is the account creators receive their money through.
// Review state transitions are driven by background jobs, not by this
// model directly.
type PayoutAccount struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id"`
	AdminUserID string      `gorm:"type:uuid;index;not null" json:"admin_user_id"`
	AccountType AccountType `gorm:"type:text;not null" json:"account_type"`
	Status      string      `gorm:"type:text;not null;default:'created'" json:"status"`
	Country     string      `gorm:"type:text" json:"country"`
	Currency    string      `gorm:"type:text" json:"currency"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PayoutAccount) TableName() string { return "payout_accounts" }

func (a *PayoutAccount) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// HeldBalance is money withheld while the owning payout account is
// under review. Amount is in the currency's minor unit.
type HeldBalance struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	PayoutAccountID string     `gorm:"type:uuid;index;not null" json:"payout_account_id"`
	Amount          int64      `gorm:"not null" json:"amount"`
	Currency        string     `gorm:"type:text;not null" json:"currency"`
	ReleasedAt      *time.Time `json:"released_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (HeldBalance) TableName() string { return "held_balances" }

func (b *HeldBalance) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
