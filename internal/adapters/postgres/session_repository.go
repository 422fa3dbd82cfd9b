package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mhawash/polar/internal/domain"
)

type RefreshSessionRepository interface {
	Create(ctx context.Context, session *domain.RefreshSession) error
	FindActive(ctx context.Context, tokenHash string) (*domain.RefreshSession, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

type refreshSessionRepo struct{ db *gorm.DB }

func NewRefreshSessionRepository(db *gorm.DB) RefreshSessionRepository {
	return &refreshSessionRepo{db: db}
}

func (r *refreshSessionRepo) Create(ctx context.Context, session *domain.RefreshSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *refreshSessionRepo) FindActive(ctx context.Context, tokenHash string) (*domain.RefreshSession, error) {
	var session domain.RefreshSession
	if err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, time.Now()).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *refreshSessionRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.RefreshSession{}).
		Where("token_hash = ?", tokenHash).
		Updates(map[string]interface{}{"revoked_at": &now}).Error
}
