package domain

import "time"

// RemoteIdentity is the profile an identity provider reports for the
// currently authenticating user. It is never persisted as-is.
type RemoteIdentity struct {
	Platform  Platform
	RemoteID  string
	Username  string
	Name      string
	AvatarURL string
}

// OAuthCredentials are freshly issued provider tokens. They are opaque
// to this service and passed through to the linked account verbatim.
type OAuthCredentials struct {
	AccessToken           string
	ExpiresAt             *time.Time
	RefreshToken          string
	RefreshTokenExpiresAt *time.Time
}
