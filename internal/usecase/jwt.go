package usecase

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mhawash/polar/config"
	"github.com/mhawash/polar/internal/domain"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// StatePayload is what a signed OAuth state token carries across the
// redirect round-trip.
type StatePayload struct {
	Platform    domain.Platform
	LinkUserID  string // set when a signed-in user is attaching the account
	Attribution *domain.SignupAttribution
	ReturnTo    string
}

type JWTSigner interface {
	SignAccessToken(subject string, claims map[string]interface{}, ttl time.Duration) (string, error)
	SignRefreshToken(subject, jti string, ttl time.Duration) (string, error)
	SignState(payload StatePayload, ttl time.Duration) (string, error)
	ParseState(token string) (*StatePayload, error)
	Parse(token string) (*jwt.Token, jwt.MapClaims, error)
}

type jwtSigner struct {
	cfg       *config.Config
	hmacKey   []byte
	private   *rsa.PrivateKey
	publicKey *rsa.PublicKey
}

func NewJWTSigner(cfg *config.Config) (JWTSigner, error) {
	s := &jwtSigner{cfg: cfg}
	if cfg.JWTSecret != "" {
		s.hmacKey = []byte(cfg.JWTSecret)
		return s, nil
	}
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKey))
		if err != nil {
			return nil, err
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, err
		}
		s.private = priv
		s.publicKey = pub
		return s, nil
	}
	return nil, errors.New("jwt secret or key pair required")
}

func (s *jwtSigner) SignAccessToken(subject string, claims map[string]interface{}, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.GetSigningMethod(s.method()))
	now := time.Now().UTC()
	std := token.Claims.(jwt.MapClaims)
	std["sub"] = subject
	std["iss"] = s.cfg.JWTIssuer
	std["aud"] = s.cfg.JWTAudience
	std["exp"] = now.Add(ttl).Unix()
	std["iat"] = now.Unix()
	for k, v := range claims {
		std[k] = v
	}
	return s.sign(token)
}

func (s *jwtSigner) SignRefreshToken(subject, jti string, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.GetSigningMethod(s.method()))
	now := time.Now().UTC()
	std := token.Claims.(jwt.MapClaims)
	std["sub"] = subject
	std["jti"] = jti
	std["typ"] = "refresh"
	std["iss"] = s.cfg.JWTIssuer
	std["aud"] = s.cfg.JWTAudience
	std["exp"] = now.Add(ttl).Unix()
	std["iat"] = now.Unix()
	return s.sign(token)
}

func (s *jwtSigner) SignState(payload StatePayload, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"typ":      "oauth_state",
		"jti":      uuid.NewString(),
		"platform": string(payload.Platform),
	}
	if payload.LinkUserID != "" {
		claims["link_user_id"] = payload.LinkUserID
	}
	if payload.ReturnTo != "" {
		claims["return_to"] = payload.ReturnTo
	}
	if payload.Attribution != nil {
		claims["attribution"] = payload.Attribution
	}
	return s.SignAccessToken("oauth_state", claims, ttl)
}

func (s *jwtSigner) ParseState(token string) (*StatePayload, error) {
	tok, claims, err := s.Parse(token)
	if err != nil || tok == nil || !tok.Valid {
		return nil, errors.New("invalid state token")
	}
	if typ, _ := claims["typ"].(string); typ != "oauth_state" {
		return nil, errors.New("not a state token")
	}
	platform, _ := claims["platform"].(string)
	if platform == "" {
		return nil, errors.New("state token missing platform")
	}
	payload := &StatePayload{Platform: domain.Platform(platform)}
	payload.LinkUserID, _ = claims["link_user_id"].(string)
	payload.ReturnTo, _ = claims["return_to"].(string)
	if raw, ok := claims["attribution"]; ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		attribution := &domain.SignupAttribution{}
		if err := json.Unmarshal(data, attribution); err != nil {
			return nil, err
		}
		payload.Attribution = attribution
	}
	return payload, nil
}

func (s *jwtSigner) Parse(tokenStr string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithAudience(s.cfg.JWTAudience), jwt.WithIssuer(s.cfg.JWTIssuer), jwt.WithLeeway(30*time.Second))
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if s.hmacKey != nil {
			return s.hmacKey, nil
		}
		return s.publicKey, nil
	})
	return token, claims, err
}

func (s *jwtSigner) sign(token *jwt.Token) (string, error) {
	if s.hmacKey != nil {
		return token.SignedString(s.hmacKey)
	}
	if s.private == nil {
		return "", errors.New("private key not configured")
	}
	return token.SignedString(s.private)
}

func (s *jwtSigner) method() string {
	if s.hmacKey != nil {
		return jwt.SigningMethodHS256.Alg()
	}
	return jwt.SigningMethodRS256.Alg()
}
