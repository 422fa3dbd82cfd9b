package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/mhawash/polar/internal/domain"
)

type UserRepository interface {
	// FindByLinkedAccount joins through linked_accounts on
	// (platform, remote_id).
	FindByLinkedAccount(ctx context.Context, platform domain.Platform, remoteID string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Create inserts the user together with any nested linked accounts
	// in a single transaction.
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
}

type LinkedAccountRepository interface {
	FindByPlatformAndUser(ctx context.Context, platform domain.Platform, userID string) (*domain.LinkedAccount, error)
	FindByPlatformAndUsername(ctx context.Context, platform domain.Platform, username string) (*domain.LinkedAccount, error)
	FindByPlatformAndRemoteID(ctx context.Context, platform domain.Platform, remoteID string) (*domain.LinkedAccount, error)
	Save(ctx context.Context, account *domain.LinkedAccount) error
}

type userRepo struct{ db *gorm.DB }

type linkedAccountRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func NewLinkedAccountRepository(db *gorm.DB) LinkedAccountRepository {
	return &linkedAccountRepo{db: db}
}

func (r *userRepo) FindByLinkedAccount(ctx context.Context, platform domain.Platform, remoteID string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN linked_accounts ON linked_accounts.user_id = users.id").
		Where("linked_accounts.platform = ? AND linked_accounts.remote_id = ?", platform, remoteID).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Preload("LinkedAccounts").Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Omit("LinkedAccounts").Save(user).Error
}

func (r *linkedAccountRepo) FindByPlatformAndUser(ctx context.Context, platform domain.Platform, userID string) (*domain.LinkedAccount, error) {
	var account domain.LinkedAccount
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND user_id = ?", platform, userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *linkedAccountRepo) FindByPlatformAndUsername(ctx context.Context, platform domain.Platform, username string) (*domain.LinkedAccount, error) {
	var account domain.LinkedAccount
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND username = ?", platform, username).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *linkedAccountRepo) FindByPlatformAndRemoteID(ctx context.Context, platform domain.Platform, remoteID string) (*domain.LinkedAccount, error) {
	var account domain.LinkedAccount
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND remote_id = ?", platform, remoteID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *linkedAccountRepo) Save(ctx context.Context, account *domain.LinkedAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}
