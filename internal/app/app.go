package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mhawash/polar/config"
	"github.com/mhawash/polar/internal/adapters/discord"
	httpadapter "github.com/mhawash/polar/internal/adapters/http"
	apiv1 "github.com/mhawash/polar/internal/adapters/http/api/v1"
	handlers "github.com/mhawash/polar/internal/adapters/http/api/v1/handlers"
	authmw "github.com/mhawash/polar/internal/adapters/http/middleware"
	"github.com/mhawash/polar/internal/adapters/identity"
	githubidentity "github.com/mhawash/polar/internal/adapters/identity/github"
	googleidentity "github.com/mhawash/polar/internal/adapters/identity/google"
	natsadapter "github.com/mhawash/polar/internal/adapters/nats"
	repo "github.com/mhawash/polar/internal/adapters/postgres"
	"github.com/mhawash/polar/internal/adapters/support"
	"github.com/mhawash/polar/internal/domain"
	"github.com/mhawash/polar/internal/usecase"
	pkglog "github.com/mhawash/polar/pkg/log"
)

type App struct {
	cfg      *config.Config
	logger   pkglog.Logger
	db       *gorm.DB
	natsConn *nats.Conn
	echo     *echo.Echo
}

func New(ctx context.Context) (*App, error) {
	cfg := config.MustLoad()
	appLogger := pkglog.New(cfg.AppEnv, cfg.AppName)

	db, err := gorm.Open(postgres.Open(buildDSN(cfg)), &gorm.Config{
		Logger: loggerForGorm(cfg),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.LinkedAccount{},
		&domain.RefreshSession{},
		&domain.PayoutAccount{},
		&domain.HeldBalance{},
	); err != nil {
		return nil, err
	}

	// Degraded mode without the bus: HTTP still serves, jobs and
	// notifications are disabled.
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		appLogger.Error().Err(err).Str("url", cfg.NATSURL).Msg("nats connect failed")
		nc = nil
	}

	userRepo := repo.NewUserRepository(db)
	linkRepo := repo.NewLinkedAccountRepository(db)
	sessionRepo := repo.NewRefreshSessionRepository(db)
	accountRepo := repo.NewPayoutAccountRepository(db)
	heldRepo := repo.NewHeldBalanceRepository(db)

	var jobClient natsadapter.JobClient
	var notifier natsadapter.NotificationClient
	if nc != nil {
		jobClient = natsadapter.NewJobClient(nc)
		notifier = natsadapter.NewNotificationClient(nc, cfg.NATSNotificationSubject)
	}

	signer, err := usecase.NewJWTSigner(cfg)
	if err != nil {
		return nil, err
	}

	providers := identity.NewRegistry(
		githubidentity.NewProvider(cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubRedirectURL, cfg.GithubAPIBaseURL, appLogger),
	)
	if cfg.GoogleClientID != "" {
		googleProvider, err := googleidentity.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, err
		}
		providers[googleProvider.Platform()] = googleProvider
	}

	reconciler := usecase.NewReconcileService(cfg, appLogger, userRepo, linkRepo, jobClient)
	sessions := usecase.NewSessionService(cfg, appLogger, userRepo, sessionRepo, signer)
	alerts := discord.NewWebhookSender(cfg.DiscordWebhookURL, 5*time.Second)
	supportClient := support.NewHTTPClient(cfg.SupportBaseURL, cfg.SupportAPIKey, 5*time.Second)
	review := usecase.NewReviewService(appLogger, accountRepo, heldRepo, userRepo, notifier, alerts, supportClient)

	handler := handlers.NewOAuthHandler(cfg, providers, reconciler, sessions, signer, jobClient)
	authMW := authmw.NewAuthMiddleware(signer)
	router := httpadapter.NewRouter(cfg, apiv1.NewRouter(handler, authMW.Handler))

	if nc != nil {
		jobServer := natsadapter.NewJobServer(appLogger, review)
		subjects := natsadapter.JobSubjects{
			AccountUnderReview: cfg.NATSAccountUnderReviewSubject,
			AccountReviewed:    cfg.NATSAccountReviewedSubject,
			AfterSignup:        cfg.NATSAfterSignupSubject,
		}
		if err := jobServer.Subscribe(nc, subjects, cfg.AppName); err != nil {
			return nil, err
		}
		verifyHandler := natsadapter.NewVerifyHandler(signer)
		if err := verifyHandler.Subscribe(nc, cfg.NATSVerifySubject, cfg.AppName); err != nil {
			return nil, err
		}
	}

	e := echo.New()
	router.Setup(e)

	return &App{cfg: cfg, logger: appLogger, db: db, natsConn: nc, echo: e}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.echo.Shutdown(shutdownCtx)
	}()
	go func() {
		errCh <- a.echo.Start(fmt.Sprintf("%s:%s", a.cfg.HTTPHost, a.cfg.HTTPPort))
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

func loggerForGorm(cfg *config.Config) logger.Interface {
	level := logger.Silent
	switch cfg.AppEnv {
	case "local":
		level = logger.Info
	default:
		level = logger.Warn
	}
	return logger.Default.LogMode(level)
}
