package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName      string `env:"POLAR_APP_NAME" envDefault:"polar-identity"`
	AppEnv       string `env:"POLAR_APP_ENV" envDefault:"local"`
	HTTPHost     string `env:"POLAR_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort     string `env:"POLAR_HTTP_PORT" envDefault:"8081"`
	HTTPBasePath string `env:"POLAR_HTTP_BASE_PATH" envDefault:"/api/v1"`

	DBHost     string `env:"POLAR_DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"POLAR_DB_PORT" envDefault:"5432"`
	DBUser     string `env:"POLAR_DB_USER" envDefault:"app"`
	DBPassword string `env:"POLAR_DB_PASSWORD" envDefault:"app_password"`
	DBName     string `env:"POLAR_DB_NAME" envDefault:"polardb"`
	DBSSLMode  string `env:"POLAR_DB_SSLMODE" envDefault:"disable"`

	JWTSecret     string        `env:"POLAR_JWT_SECRET"`
	JWTPrivateKey string        `env:"POLAR_JWT_PRIVATE_KEY"`
	JWTPublicKey  string        `env:"POLAR_JWT_PUBLIC_KEY"`
	JWTAudience   string        `env:"POLAR_JWT_AUDIENCE" envDefault:"frontend"`
	JWTIssuer     string        `env:"POLAR_JWT_ISSUER" envDefault:"polar-identity"`
	AccessTTL     time.Duration `env:"POLAR_JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"POLAR_JWT_REFRESH_TTL" envDefault:"720h"`
	OAuthStateTTL time.Duration `env:"POLAR_OAUTH_STATE_TTL" envDefault:"10m"`

	NATSURL                       string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSVerifySubject             string `env:"NATS_SUBJECT_VERIFY_JWT" envDefault:"identity.verifyJWT"`
	NATSNotificationSubject       string `env:"NATS_SUBJECT_NOTIFICATION_SEND" envDefault:"notification.send-to-user"`
	NATSAccountUnderReviewSubject string `env:"NATS_SUBJECT_ACCOUNT_UNDER_REVIEW" envDefault:"account.under_review"`
	NATSAccountReviewedSubject    string `env:"NATS_SUBJECT_ACCOUNT_REVIEWED" envDefault:"account.reviewed"`
	NATSAfterSignupSubject        string `env:"NATS_SUBJECT_USER_AFTER_SIGNUP" envDefault:"user.on_after_signup"`

	GithubClientID     string `env:"POLAR_GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"POLAR_GITHUB_CLIENT_SECRET"`
	GithubRedirectURL  string `env:"POLAR_GITHUB_REDIRECT_URL"`
	GithubAPIBaseURL   string `env:"POLAR_GITHUB_API_BASE_URL" envDefault:"https://api.github.com"`

	GoogleClientID     string `env:"POLAR_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"POLAR_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"POLAR_GOOGLE_REDIRECT_URL"`

	DiscordWebhookURL string `env:"POLAR_DISCORD_WEBHOOK_URL"`

	SupportBaseURL string `env:"POLAR_SUPPORT_BASE_URL"`
	SupportAPIKey  string `env:"POLAR_SUPPORT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
