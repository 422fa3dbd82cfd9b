package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mhawash/polar/internal/domain"
)

type PayoutAccountRepository interface {
	FindByID(ctx context.Context, id string) (*domain.PayoutAccount, error)
	// HolderEmails lists the emails of users attached to the payout
	// account, for human-readable review alerts.
	HolderEmails(ctx context.Context, accountID string) ([]string, error)
	Update(ctx context.Context, account *domain.PayoutAccount) error
}

type HeldBalanceRepository interface {
	// ReleaseForAccount stamps released_at on every unreleased balance of
	// the account and reports how many rows were released.
	ReleaseForAccount(ctx context.Context, accountID string) (int64, error)
	Create(ctx context.Context, balance *domain.HeldBalance) error
}

type payoutAccountRepo struct{ db *gorm.DB }

type heldBalanceRepo struct{ db *gorm.DB }

func NewPayoutAccountRepository(db *gorm.DB) PayoutAccountRepository {
	return &payoutAccountRepo{db: db}
}

func NewHeldBalanceRepository(db *gorm.DB) HeldBalanceRepository {
	return &heldBalanceRepo{db: db}
}

func (r *payoutAccountRepo) FindByID(ctx context.Context, id string) (*domain.PayoutAccount, error) {
	var account domain.PayoutAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *payoutAccountRepo) HolderEmails(ctx context.Context, accountID string) ([]string, error) {
	var emails []string
	if err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("payout_account_id = ?", accountID).
		Order("email").
		Pluck("email", &emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *payoutAccountRepo) Update(ctx context.Context, account *domain.PayoutAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *heldBalanceRepo) ReleaseForAccount(ctx context.Context, accountID string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.HeldBalance{}).
		Where("payout_account_id = ? AND released_at IS NULL", accountID).
		Update("released_at", &now)
	return res.RowsAffected, res.Error
}

func (r *heldBalanceRepo) Create(ctx context.Context, balance *domain.HeldBalance) error {
	return r.db.WithContext(ctx).Create(balance).Error
}
