package auth

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeAccess = "access"

var (
	ErrSecretMissing = errors.New("jwt secret is empty")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrForbidden     = errors.New("channel not granted")
)

// AccessClaims are the claims carried by a chat auth key. Channels holds the
// channel id patterns the holder may use; empty grants every channel.
type AccessClaims struct {
	UserID    string   `json:"user_id"`
	Channels  []string `json:"channels,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// CanAccess reports whether channelID matches one of the granted patterns.
// Patterns use path.Match syntax ("support-*").
func (c *AccessClaims) CanAccess(channelID string) bool {
	if c == nil {
		return false
	}
	if len(c.Channels) == 0 {
		return true
	}
	for _, pattern := range c.Channels {
		if pattern == "*" || pattern == channelID {
			return true
		}
		if ok, err := path.Match(pattern, channelID); err == nil && ok {
			return true
		}
	}
	return false
}

// Token is a signed auth key plus its metadata.
type Token struct {
	Value     string
	JTI       string
	ExpiresAt time.Time
}

// RevocationList tracks revoked token ids.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Issue signs an auth key for userID limited to channels.
func Issue(userID string, channels []string, cfg Config) (*Token, error) {
	cfg.Defaults()
	if cfg.Secret == "" {
		return nil, ErrSecretMissing
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	now := time.Now()
	jti := uuid.NewString()
	claims := AccessClaims{
		UserID:    userID,
		Channels:  channels,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-cfg.ClockSkew)),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
	}
	signed, err := signClaims(claims, cfg.Secret)
	if err != nil {
		return nil, err
	}
	return &Token{Value: signed, JTI: jti, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify parses and validates an auth key. revocations may be nil.
func Verify(ctx context.Context, tokenStr string, cfg Config, revocations RevocationList) (*AccessClaims, error) {
	cfg.Defaults()
	if cfg.Secret == "" {
		return nil, ErrSecretMissing
	}
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithLeeway(cfg.ClockSkew), jwt.WithIssuer(cfg.Issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.TokenType != tokenTypeAccess || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	if revocations != nil && claims.ID != "" {
		revoked, err := revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke blocks an auth key until it would have expired anyway.
func Revoke(ctx context.Context, tokenStr string, cfg Config, revocations RevocationList) error {
	if revocations == nil {
		return errors.New("revocation list not configured")
	}
	claims, err := Verify(ctx, tokenStr, cfg, nil)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return revocations.Revoke(ctx, claims.ID, ttl)
}

func signClaims(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
