package usecase

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mhawash/polar/config"
	"github.com/mhawash/polar/internal/adapters/identity"
	natsadapter "github.com/mhawash/polar/internal/adapters/nats"
	repo "github.com/mhawash/polar/internal/adapters/postgres"
	"github.com/mhawash/polar/internal/domain"
	pkglog "github.com/mhawash/polar/pkg/log"
)

// ErrNoPrimaryEmail is the reconciliation-facing alias for the provider
// contract error: fatal for new-account creation, tolerated during
// update-in-place.
var ErrNoPrimaryEmail = identity.ErrNoPrimaryEmail

// ErrAccountLinkedToAnotherUser refuses an explicit link request for an
// identity already bound to a different local user.
var ErrAccountLinkedToAnotherUser = errors.New("external account is already linked to another user")

// CannotLinkUnverifiedEmailError refuses an auto-link when the remote
// email matches a local account but the provider has not verified it.
// An attacker controlling an unverified address must not be able to
// take over the matching local account.
type CannotLinkUnverifiedEmailError struct {
	Email string
}

func (e *CannotLinkUnverifiedEmailError) Error() string {
	return fmt.Sprintf("an account already exists under %s but the address is not verified with the provider", e.Email)
}

// ReconcileService matches a remote identity against local state and
// decides between create, update and refuse.
type ReconcileService interface {
	// Reconcile drives a sign-in: it returns the matching local user,
	// updated in place, or a freshly created one.
	Reconcile(ctx context.Context, client identity.Client, creds domain.OAuthCredentials, attribution *domain.SignupAttribution) (user *domain.User, created bool, err error)
	// LinkExistingAccount attaches the authenticated external identity
	// to an already signed-in user.
	LinkExistingAccount(ctx context.Context, client identity.Client, user *domain.User, creds domain.OAuthCredentials) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type reconcileService struct {
	cfg    *config.Config
	logger pkglog.Logger
	users  repo.UserRepository
	links  repo.LinkedAccountRepository
	jobs   natsadapter.JobClient
}

func NewReconcileService(cfg *config.Config, logger pkglog.Logger, users repo.UserRepository, links repo.LinkedAccountRepository, jobs natsadapter.JobClient) ReconcileService {
	return &reconcileService{cfg: cfg, logger: logger, users: users, links: links, jobs: jobs}
}

// Reconcile precedence is load-bearing and must not be reordered:
// remote-id match first, then verified-email auto-link, then create.
func (s *reconcileService) Reconcile(ctx context.Context, client identity.Client, creds domain.OAuthCredentials, attribution *domain.SignupAttribution) (*domain.User, bool, error) {
	remote, err := client.FetchIdentity(ctx)
	if err != nil {
		return nil, false, err
	}

	user, err := s.users.FindByLinkedAccount(ctx, remote.Platform, remote.RemoteID)
	if err == nil {
		updated, err := s.refresh(ctx, client, user, remote, creds)
		return updated, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	// No link yet. From here on a resolvable primary email is mandatory.
	email, verified, err := client.FetchPrimaryEmail(ctx)
	if err != nil {
		return nil, false, err
	}

	user, err = s.users.FindByEmail(ctx, email)
	if err == nil {
		if !verified {
			return nil, false, &CannotLinkUnverifiedEmailError{Email: email}
		}
		updated, err := s.refresh(ctx, client, user, remote, creds)
		return updated, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = &domain.User{
		Email:             email,
		EmailVerified:     verified,
		AvatarURL:         remote.AvatarURL,
		SignupAttribution: attribution,
		LinkedAccounts: []domain.LinkedAccount{{
			Platform:              remote.Platform,
			RemoteID:              remote.RemoteID,
			Username:              remote.Username,
			Email:                 email,
			AccessToken:           creds.AccessToken,
			ExpiresAt:             creds.ExpiresAt,
			RefreshToken:          creds.RefreshToken,
			RefreshTokenExpiresAt: creds.RefreshTokenExpiresAt,
		}},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("platform", string(remote.Platform)).
		Str("username", remote.Username).
		Msg("user created")

	// Enqueued only after the creating transaction has committed, so a
	// rollback can never leave a job pointing at a missing row.
	if s.jobs != nil {
		if err := s.jobs.Enqueue(ctx, s.cfg.NATSAfterSignupSubject, map[string]interface{}{"user_id": user.ID}); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("post-signup job enqueue failed")
		}
	}
	return user, true, nil
}

// refresh is the update-in-place path. It tolerates an unresolvable
// primary email: only a first-time link requires one.
func (s *reconcileService) refresh(ctx context.Context, client identity.Client, user *domain.User, remote *domain.RemoteIdentity, creds domain.OAuthCredentials) (*domain.User, error) {
	email, _, emailErr := client.FetchPrimaryEmail(ctx)
	emailKnown := emailErr == nil

	user.AvatarURL = remote.AvatarURL

	account, err := s.links.FindByPlatformAndUser(ctx, remote.Platform, user.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !emailKnown {
			return nil, ErrNoPrimaryEmail
		}
		account = &domain.LinkedAccount{
			UserID:   user.ID,
			Platform: remote.Platform,
			RemoteID: remote.RemoteID,
			Username: remote.Username,
			Email:    email,
		}
	case err != nil:
		return nil, err
	}

	if emailKnown {
		account.Email = email
	}
	account.AccessToken = creds.AccessToken
	account.ExpiresAt = creds.ExpiresAt
	account.RefreshToken = creds.RefreshToken
	account.RefreshTokenExpiresAt = creds.RefreshTokenExpiresAt
	account.Username = remote.Username

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.links.Save(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("platform", string(remote.Platform)).
		Msg("user updated")
	return user, nil
}

func (s *reconcileService) LinkExistingAccount(ctx context.Context, client identity.Client, user *domain.User, creds domain.OAuthCredentials) (*domain.User, error) {
	remote, err := client.FetchIdentity(ctx)
	if err != nil {
		return nil, err
	}
	// Unlike sign-in, the link flow has no fallback: the email fetch
	// error propagates as-is.
	email, _, err := client.FetchPrimaryEmail(ctx)
	if err != nil {
		return nil, err
	}

	byUsername, err := s.links.FindByPlatformAndUsername(ctx, remote.Platform, remote.Username)
	if err == nil && byUsername.UserID != user.ID {
		return nil, ErrAccountLinkedToAnotherUser
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account, err := s.links.FindByPlatformAndRemoteID(ctx, remote.Platform, remote.RemoteID)
	switch {
	case err == nil:
		if account.UserID != user.ID {
			return nil, ErrAccountLinkedToAnotherUser
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = &domain.LinkedAccount{
			UserID:   user.ID,
			Platform: remote.Platform,
			RemoteID: remote.RemoteID,
		}
	default:
		return nil, err
	}

	account.AccessToken = creds.AccessToken
	account.ExpiresAt = creds.ExpiresAt
	account.RefreshToken = creds.RefreshToken
	account.RefreshTokenExpiresAt = creds.RefreshTokenExpiresAt
	account.Email = email
	account.Username = remote.Username
	user.AvatarURL = remote.AvatarURL

	if err := s.links.Save(ctx, account); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("platform", string(remote.Platform)).
		Msg("external account linked")
	return user, nil
}

func (s *reconcileService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}
