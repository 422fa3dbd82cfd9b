package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mhawash/polar/internal/domain"
)

func timeInFuture() time.Time { return time.Now().Add(time.Hour) }

func timeInPast() time.Time { return time.Now().Add(-time.Hour) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.LinkedAccount{},
		&domain.RefreshSession{},
		&domain.PayoutAccount{},
		&domain.HeldBalance{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUserCreateWithNestedLinkedAccount(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	user := &domain.User{
		Email:         "octo@example.com",
		EmailVerified: true,
		LinkedAccounts: []domain.LinkedAccount{{
			Platform: domain.PlatformGitHub,
			RemoteID: "123",
			Username: "octocat",
			Email:    "octo@example.com",
		}},
	}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.ID == "" {
		t.Fatal("id should be generated")
	}

	found, err := users.FindByLinkedAccount(ctx, domain.PlatformGitHub, "123")
	if err != nil {
		t.Fatalf("find by linked account: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("wrong user: %+v", found)
	}

	byEmail, err := users.FindByEmail(ctx, "octo@example.com")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("find by email: %v %+v", err, byEmail)
	}

	byID, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if len(byID.LinkedAccounts) != 1 || byID.LinkedAccounts[0].RemoteID != "123" {
		t.Fatalf("linked accounts not preloaded: %+v", byID.LinkedAccounts)
	}
}

func TestUserLookupsReportNotFound(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	if _, err := users.FindByLinkedAccount(ctx, domain.PlatformGitHub, "404"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
	if _, err := users.FindByEmail(ctx, "ghost@example.com"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestLinkedAccountUniquePlatformRemote(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	links := NewLinkedAccountRepository(db)
	ctx := context.Background()

	a := &domain.User{Email: "a@example.com"}
	b := &domain.User{Email: "b@example.com"}
	if err := users.Create(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := users.Create(ctx, b); err != nil {
		t.Fatalf("create b: %v", err)
	}

	first := &domain.LinkedAccount{UserID: a.ID, Platform: domain.PlatformGitHub, RemoteID: "123"}
	if err := links.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	dup := &domain.LinkedAccount{UserID: b.ID, Platform: domain.PlatformGitHub, RemoteID: "123"}
	if err := links.Save(ctx, dup); err == nil {
		t.Fatal("duplicate (platform, remote_id) must violate the unique index")
	}
}

func TestLinkedAccountLookups(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	links := NewLinkedAccountRepository(db)
	ctx := context.Background()

	user := &domain.User{Email: "a@example.com"}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	account := &domain.LinkedAccount{
		UserID: user.ID, Platform: domain.PlatformGitHub,
		RemoteID: "123", Username: "octocat",
	}
	if err := links.Save(ctx, account); err != nil {
		t.Fatalf("save: %v", err)
	}

	byUser, err := links.FindByPlatformAndUser(ctx, domain.PlatformGitHub, user.ID)
	if err != nil || byUser.ID != account.ID {
		t.Fatalf("by user: %v %+v", err, byUser)
	}
	byUsername, err := links.FindByPlatformAndUsername(ctx, domain.PlatformGitHub, "octocat")
	if err != nil || byUsername.ID != account.ID {
		t.Fatalf("by username: %v %+v", err, byUsername)
	}
	byRemote, err := links.FindByPlatformAndRemoteID(ctx, domain.PlatformGitHub, "123")
	if err != nil || byRemote.ID != account.ID {
		t.Fatalf("by remote id: %v %+v", err, byRemote)
	}
	if _, err := links.FindByPlatformAndUser(ctx, domain.PlatformGoogle, user.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("platform mismatch should miss, got %v", err)
	}
}

func TestHolderEmailsSorted(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	accounts := NewPayoutAccountRepository(db)
	ctx := context.Background()

	admin := &domain.User{Email: "zadmin@example.com"}
	if err := users.Create(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	account := &domain.PayoutAccount{AdminUserID: admin.ID, AccountType: domain.AccountTypeStripe}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	admin.PayoutAccountID = &account.ID
	if err := users.Update(ctx, admin); err != nil {
		t.Fatalf("attach admin: %v", err)
	}
	other := &domain.User{Email: "alice@example.com", PayoutAccountID: &account.ID}
	if err := users.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	emails, err := accounts.HolderEmails(ctx, account.ID)
	if err != nil {
		t.Fatalf("holder emails: %v", err)
	}
	if len(emails) != 2 || emails[0] != "alice@example.com" || emails[1] != "zadmin@example.com" {
		t.Fatalf("unexpected holders: %v", emails)
	}
}

func TestHeldBalanceRelease(t *testing.T) {
	db := newTestDB(t)
	held := NewHeldBalanceRepository(db)
	ctx := context.Background()

	account := &domain.PayoutAccount{AdminUserID: "admin", AccountType: domain.AccountTypeStripe}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := held.Create(ctx, &domain.HeldBalance{PayoutAccountID: account.ID, Amount: 1000, Currency: "usd"}); err != nil {
			t.Fatalf("create balance: %v", err)
		}
	}

	released, err := held.ReleaseForAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released != 2 {
		t.Fatalf("expected 2 released, got %d", released)
	}
	// Releasing again is a no-op.
	released, err = held.ReleaseForAccount(ctx, account.ID)
	if err != nil || released != 0 {
		t.Fatalf("second release: %d %v", released, err)
	}
}

func TestRefreshSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	sessions := NewRefreshSessionRepository(db)
	ctx := context.Background()

	session := &domain.RefreshSession{
		UserID:    "user-1",
		TokenHash: "hash-1",
		ExpiresAt: timeInFuture(),
	}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := sessions.FindActive(ctx, "hash-1")
	if err != nil || active.UserID != "user-1" {
		t.Fatalf("find active: %v %+v", err, active)
	}

	if err := sessions.RevokeByHash(ctx, "hash-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := sessions.FindActive(ctx, "hash-1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("revoked session must not be active, got %v", err)
	}
}

func TestRefreshSessionExpiredNotActive(t *testing.T) {
	db := newTestDB(t)
	sessions := NewRefreshSessionRepository(db)
	ctx := context.Background()

	session := &domain.RefreshSession{
		UserID:    "user-1",
		TokenHash: "hash-2",
		ExpiresAt: timeInPast(),
	}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sessions.FindActive(ctx, "hash-2"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expired session must not be active, got %v", err)
	}
}
