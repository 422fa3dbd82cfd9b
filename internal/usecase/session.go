package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mhawash/polar/config"
	repo "github.com/mhawash/polar/internal/adapters/postgres"
	"github.com/mhawash/polar/internal/domain"
	pkglog "github.com/mhawash/polar/pkg/log"
)

var ErrInvalidSession = errors.New("invalid session")

// SessionService issues and rotates the platform's own session tokens
// after a successful reconciliation.
type SessionService interface {
	IssueSession(ctx context.Context, user *domain.User) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type sessionService struct {
	cfg      *config.Config
	logger   pkglog.Logger
	users    repo.UserRepository
	sessions repo.RefreshSessionRepository
	signer   JWTSigner
}

func NewSessionService(cfg *config.Config, logger pkglog.Logger, users repo.UserRepository, sessions repo.RefreshSessionRepository, signer JWTSigner) SessionService {
	return &sessionService{cfg: cfg, logger: logger, users: users, sessions: sessions, signer: signer}
}

func (s *sessionService) IssueSession(ctx context.Context, user *domain.User) (*Tokens, error) {
	access, err := s.signer.SignAccessToken(user.ID, map[string]interface{}{"email": user.Email}, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	jti := uuid.NewString()
	refresh, err := s.signer.SignRefreshToken(user.ID, jti, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	session := &domain.RefreshSession{
		UserID:    user.ID,
		TokenHash: hashJTI(jti),
		ExpiresAt: time.Now().Add(s.cfg.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	jti, sub, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindActive(ctx, hashJTI(jti))
	if err != nil || session.UserID != sub {
		return nil, ErrInvalidSession
	}
	user, err := s.users.FindByID(ctx, sub)
	if err != nil {
		return nil, ErrInvalidSession
	}
	// Rotate: the old session dies with the new issue.
	if err := s.sessions.RevokeByHash(ctx, session.TokenHash); err != nil {
		return nil, err
	}
	return s.IssueSession(ctx, user)
}

func (s *sessionService) Revoke(ctx context.Context, refreshToken string) error {
	jti, _, err := s.parseRefresh(refreshToken)
	if err != nil {
		return err
	}
	return s.sessions.RevokeByHash(ctx, hashJTI(jti))
}

func (s *sessionService) parseRefresh(refreshToken string) (jti, sub string, err error) {
	tok, claims, err := s.signer.Parse(refreshToken)
	if err != nil || tok == nil || !tok.Valid {
		return "", "", ErrInvalidSession
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return "", "", ErrInvalidSession
	}
	jti, _ = claims["jti"].(string)
	sub, _ = claims["sub"].(string)
	if jti == "" || sub == "" {
		return "", "", ErrInvalidSession
	}
	return jti, sub, nil
}

func hashJTI(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
