package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mhawash/polar/internal/domain"
)

type mockPayoutAccountRepo struct {
	accounts map[string]*domain.PayoutAccount
	holders  map[string][]string
}

func (r *mockPayoutAccountRepo) FindByID(_ context.Context, id string) (*domain.PayoutAccount, error) {
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockPayoutAccountRepo) HolderEmails(_ context.Context, accountID string) ([]string, error) {
	return r.holders[accountID], nil
}

func (r *mockPayoutAccountRepo) Update(_ context.Context, account *domain.PayoutAccount) error {
	r.accounts[account.ID] = account
	return nil
}

type mockHeldBalanceRepo struct {
	releases []string
	count    int64
	order    *[]string
}

func (r *mockHeldBalanceRepo) ReleaseForAccount(_ context.Context, accountID string) (int64, error) {
	r.releases = append(r.releases, accountID)
	if r.order != nil {
		*r.order = append(*r.order, "release")
	}
	return r.count, nil
}

func (r *mockHeldBalanceRepo) Create(_ context.Context, _ *domain.HeldBalance) error { return nil }

type sentNotification struct {
	userID  string
	kind    string
	payload map[string]interface{}
}

type mockNotifier struct {
	sent  []sentNotification
	order *[]string
}

func (n *mockNotifier) SendToUser(_ context.Context, userID, notificationType string, payload map[string]interface{}) error {
	n.sent = append(n.sent, sentNotification{userID: userID, kind: notificationType, payload: payload})
	if n.order != nil {
		*n.order = append(*n.order, "notify")
	}
	return nil
}

type sentAlert struct {
	title       string
	description string
}

type mockAlerts struct {
	alerts []sentAlert
}

func (a *mockAlerts) SendAlert(_ context.Context, title, description string) error {
	a.alerts = append(a.alerts, sentAlert{title: title, description: description})
	return nil
}

type supportThread struct {
	customerEmail string
	accountID     string
	accountType   string
}

type mockSupport struct {
	threads []supportThread
	err     error
}

func (s *mockSupport) CreateAccountReviewThread(_ context.Context, customerEmail, accountID, accountType string) error {
	if s.err != nil {
		return s.err
	}
	s.threads = append(s.threads, supportThread{customerEmail: customerEmail, accountID: accountID, accountType: accountType})
	return nil
}

type reviewFixture struct {
	svc      ReviewService
	accounts *mockPayoutAccountRepo
	held     *mockHeldBalanceRepo
	users    *mockUserRepo
	notifier *mockNotifier
	alerts   *mockAlerts
	support  *mockSupport
}

func newReviewFixture() *reviewFixture {
	f := &reviewFixture{
		accounts: &mockPayoutAccountRepo{accounts: map[string]*domain.PayoutAccount{}, holders: map[string][]string{}},
		held:     &mockHeldBalanceRepo{},
		users:    newMockUserRepo(newMockLinkRepo()),
		notifier: &mockNotifier{},
		alerts:   &mockAlerts{},
		support:  &mockSupport{},
	}
	f.svc = NewReviewService(zerolog.Nop(), f.accounts, f.held, f.users, f.notifier, f.alerts, f.support)
	return f
}

func (f *reviewFixture) seedAccount() {
	f.users.users["admin-1"] = &domain.User{ID: "admin-1", Email: "admin@example.com"}
	f.accounts.accounts["acct-1"] = &domain.PayoutAccount{
		ID: "acct-1", AdminUserID: "admin-1", AccountType: domain.AccountTypeStripe,
	}
}

func TestAccountUnderReviewMissingAccount(t *testing.T) {
	f := newReviewFixture()

	err := f.svc.AccountUnderReview(context.Background(), "nope")
	var missing *AccountDoesNotExistError
	if !errors.As(err, &missing) {
		t.Fatalf("expected AccountDoesNotExistError, got %v", err)
	}
	if missing.AccountID != "nope" {
		t.Fatalf("error should carry the account id: %+v", missing)
	}
	if len(f.notifier.sent) != 0 || len(f.alerts.alerts) != 0 {
		t.Fatal("missing account must not produce side effects")
	}
}

func TestAccountUnderReviewNotifiesAndOpensThread(t *testing.T) {
	f := newReviewFixture()
	f.seedAccount()
	f.accounts.holders["acct-1"] = []string{"alice@example.com", "bob@example.com"}

	if err := f.svc.AccountUnderReview(context.Background(), "acct-1"); err != nil {
		t.Fatalf("under-review failed: %v", err)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.userID != "admin-1" || n.kind != NotificationAccountUnderReview {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.payload["account_type"] != "Stripe" {
		t.Fatalf("payload should carry the display name: %+v", n.payload)
	}

	if len(f.support.threads) != 1 {
		t.Fatalf("expected a support thread, got %d", len(f.support.threads))
	}
	thread := f.support.threads[0]
	if thread.customerEmail != "admin@example.com" || thread.accountID != "acct-1" {
		t.Fatalf("unexpected thread: %+v", thread)
	}

	if f.accounts.accounts["acct-1"].Status != AccountStatusUnderReview {
		t.Fatalf("account status not moved: %q", f.accounts.accounts["acct-1"].Status)
	}

	if len(f.alerts.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.alerts.alerts))
	}
	alert := f.alerts.alerts[0]
	if !strings.Contains(alert.description, "alice@example.com, bob@example.com") {
		t.Fatalf("alert should list the holders: %q", alert.description)
	}
	if !strings.Contains(alert.description, "Stripe") {
		t.Fatalf("alert should name the payout rail: %q", alert.description)
	}
}

func TestAccountUnderReviewFallsBackToAdminEmail(t *testing.T) {
	f := newReviewFixture()
	f.seedAccount()

	if err := f.svc.AccountUnderReview(context.Background(), "acct-1"); err != nil {
		t.Fatalf("under-review failed: %v", err)
	}
	if len(f.alerts.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.alerts.alerts))
	}
	if !strings.Contains(f.alerts.alerts[0].description, "admin@example.com") {
		t.Fatalf("alert should fall back to the admin email: %q", f.alerts.alerts[0].description)
	}
}

func TestAccountReviewedReleasesBalancesBeforeNotifying(t *testing.T) {
	f := newReviewFixture()
	f.seedAccount()
	var order []string
	f.held.order = &order
	f.notifier.order = &order
	f.held.count = 3

	if err := f.svc.AccountReviewed(context.Background(), "acct-1"); err != nil {
		t.Fatalf("reviewed failed: %v", err)
	}
	if len(f.held.releases) != 1 || f.held.releases[0] != "acct-1" {
		t.Fatalf("held balances not released: %+v", f.held.releases)
	}
	if len(order) != 2 || order[0] != "release" || order[1] != "notify" {
		t.Fatalf("release must happen before the notification: %v", order)
	}
	n := f.notifier.sent[0]
	if n.userID != "admin-1" || n.kind != NotificationAccountReviewed {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if f.accounts.accounts["acct-1"].Status != AccountStatusActive {
		t.Fatalf("account status not restored: %q", f.accounts.accounts["acct-1"].Status)
	}
}

func TestAccountReviewedMissingAccount(t *testing.T) {
	f := newReviewFixture()

	err := f.svc.AccountReviewed(context.Background(), "nope")
	var missing *AccountDoesNotExistError
	if !errors.As(err, &missing) {
		t.Fatalf("expected AccountDoesNotExistError, got %v", err)
	}
	if len(f.held.releases) != 0 {
		t.Fatal("nothing may be released for a missing account")
	}
}

func TestOnAfterSignupSendsWelcome(t *testing.T) {
	f := newReviewFixture()
	f.users.users["user-1"] = &domain.User{
		ID: "user-1", Email: "new@example.com",
		SignupAttribution: &domain.SignupAttribution{UTMSource: "blog"},
	}

	if err := f.svc.OnAfterSignup(context.Background(), "user-1"); err != nil {
		t.Fatalf("after-signup failed: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.userID != "user-1" || n.kind != NotificationWelcome || n.payload["email"] != "new@example.com" {
		t.Fatalf("unexpected welcome notification: %+v", n)
	}
}

func TestOnAfterSignupMissingUser(t *testing.T) {
	f := newReviewFixture()

	if err := f.svc.OnAfterSignup(context.Background(), "ghost"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}
