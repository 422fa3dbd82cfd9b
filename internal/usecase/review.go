package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mhawash/polar/internal/adapters/discord"
	natsadapter "github.com/mhawash/polar/internal/adapters/nats"
	repo "github.com/mhawash/polar/internal/adapters/postgres"
	"github.com/mhawash/polar/internal/adapters/support"
	pkglog "github.com/mhawash/polar/pkg/log"
)

const (
	NotificationAccountUnderReview = "maintainer_account_under_review"
	NotificationAccountReviewed    = "maintainer_account_reviewed"
	NotificationWelcome            = "welcome"
)

const (
	AccountStatusUnderReview = "under_review"
	AccountStatusActive      = "active"
)

// AccountDoesNotExistError fails a review job outright when the
// referenced payout account is gone. Never skipped silently.
type AccountDoesNotExistError struct {
	AccountID string
}

func (e *AccountDoesNotExistError) Error() string {
	return fmt.Sprintf("payout account %s does not exist", e.AccountID)
}

// ReviewService runs the account-review workflow jobs.
type ReviewService interface {
	AccountUnderReview(ctx context.Context, accountID string) error
	AccountReviewed(ctx context.Context, accountID string) error
	OnAfterSignup(ctx context.Context, userID string) error
}

type reviewService struct {
	logger   pkglog.Logger
	accounts repo.PayoutAccountRepository
	held     repo.HeldBalanceRepository
	users    repo.UserRepository
	notifier natsadapter.NotificationClient
	alerts   discord.Sender
	support  support.Client
}

func NewReviewService(logger pkglog.Logger, accounts repo.PayoutAccountRepository, held repo.HeldBalanceRepository, users repo.UserRepository, notifier natsadapter.NotificationClient, alerts discord.Sender, supportClient support.Client) ReviewService {
	return &reviewService{
		logger:   logger,
		accounts: accounts,
		held:     held,
		users:    users,
		notifier: notifier,
		alerts:   alerts,
		support:  supportClient,
	}
}

func (s *reviewService) AccountUnderReview(ctx context.Context, accountID string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &AccountDoesNotExistError{AccountID: accountID}
	}
	if err != nil {
		return err
	}

	account.Status = AccountStatusUnderReview
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	if err := s.notifier.SendToUser(ctx, account.AdminUserID, NotificationAccountUnderReview, map[string]interface{}{
		"account_type": account.AccountType.DisplayName(),
	}); err != nil {
		return err
	}

	admin, err := s.users.FindByID(ctx, account.AdminUserID)
	if err != nil {
		return err
	}
	if err := s.support.CreateAccountReviewThread(ctx, admin.Email, account.ID, account.AccountType.DisplayName()); err != nil {
		return err
	}

	holders, err := s.accounts.HolderEmails(ctx, account.ID)
	if err != nil {
		return err
	}
	if len(holders) == 0 {
		holders = []string{admin.Email}
	}
	title := "Payout account should be reviewed"
	description := fmt.Sprintf("The %s payout account used by %s should be reviewed.",
		account.AccountType.DisplayName(), strings.Join(holders, ", "))
	if err := s.alerts.SendAlert(ctx, title, description); err != nil {
		return err
	}

	s.logger.Info().Str("account_id", account.ID).Msg("account flagged for review")
	return nil
}

func (s *reviewService) AccountReviewed(ctx context.Context, accountID string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &AccountDoesNotExistError{AccountID: accountID}
	}
	if err != nil {
		return err
	}

	account.Status = AccountStatusActive
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	// Held funds must be flowing again before the user hears about it.
	released, err := s.held.ReleaseForAccount(ctx, account.ID)
	if err != nil {
		return err
	}

	if err := s.notifier.SendToUser(ctx, account.AdminUserID, NotificationAccountReviewed, map[string]interface{}{
		"account_type": account.AccountType.DisplayName(),
	}); err != nil {
		return err
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Int64("released_balances", released).
		Msg("account review passed")
	return nil
}

func (s *reviewService) OnAfterSignup(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	event := s.logger.Info().Str("user_id", user.ID)
	if user.SignupAttribution != nil {
		event = event.Interface("attribution", user.SignupAttribution)
	}
	event.Msg("post-signup processing")

	return s.notifier.SendToUser(ctx, user.ID, NotificationWelcome, map[string]interface{}{
		"email": user.Email,
	})
}
