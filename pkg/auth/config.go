package auth

import "time"

// DefaultRevocationPrefix is the Redis key prefix for revoked token ids.
const DefaultRevocationPrefix = "chat:auth:revoked:"

// Config controls signing and validation of chat access tokens (auth keys).
// Secret is the shared HS256 key.
type Config struct {
	Secret           string
	TTL              time.Duration
	ClockSkew        time.Duration
	Issuer           string
	RevocationPrefix string
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if c.Issuer == "" {
		c.Issuer = "chat-bindings"
	}
	if c.RevocationPrefix == "" {
		c.RevocationPrefix = DefaultRevocationPrefix
	}
}
