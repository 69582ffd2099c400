package config

import (
	"strings"
	"time"
)

const (
	TransportLocal = "local"
	TransportRedis = "redis"

	GatewayFCM  = "fcm"
	GatewayAPNS = "apns"

	minUserActivityInterval = 60
)

// DefaultRateLimits are the publish intervals per channel type.
var DefaultRateLimits = map[string]time.Duration{
	"direct":  0,
	"group":   500 * time.Millisecond,
	"public":  time.Second,
	"unknown": 0,
}

// ==================== ChatConfig ====================

func (c *ChatConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = 5
	}
	if c.StoreUserActivityInterval <= 0 {
		c.StoreUserActivityInterval = 600
	}
	if c.StoreUserActivityInterval < minUserActivityInterval {
		c.StoreUserActivityInterval = minUserActivityInterval
	}
	if c.RateLimitFactor <= 0 {
		c.RateLimitFactor = 2
	}
	limits := make(map[string]time.Duration, len(DefaultRateLimits))
	for k, v := range DefaultRateLimits {
		limits[k] = v
	}
	for k, v := range c.RateLimitPerChannel {
		limits[strings.ToLower(k)] = v
	}
	c.RateLimitPerChannel = limits
	c.PushNotifications.ApplyDefaults()
}

// ==================== PushConfig ====================

func (p *PushConfig) ApplyDefaults() {
	p.DeviceGateway = strings.ToLower(strings.TrimSpace(p.DeviceGateway))
	if p.DeviceGateway == "" {
		p.DeviceGateway = GatewayFCM
	}
	if p.DeviceGateway == GatewayAPNS && p.APNSEnvironment == "" {
		p.APNSEnvironment = "development"
	}
}

// ==================== AuthConfig ====================

func (a *AuthConfig) ApplyDefaults() {
	if a.TokenTTL <= 0 {
		a.TokenTTL = 86400
	}
	if a.Issuer == "" {
		a.Issuer = "chat-bindings"
	}
	if a.RevocationPrefix == "" {
		a.RevocationPrefix = "chat:auth:revoked:"
	}
}

// ==================== TransportConfig ====================

func (t *TransportConfig) ApplyDefaults() {
	t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
	if t.Kind == "" {
		t.Kind = TransportLocal
	}
	if t.Prefix == "" {
		t.Prefix = "chat"
	}
}

// ==================== KafkaConfig ====================

func (k *KafkaConfig) ApplyDefaults() {
	if k.Topic == "" {
		k.Topic = "chat.push"
	}
	if k.ClientID == "" {
		k.ClientID = "chat-bindings"
	}
	if k.ConsumerGroup == "" {
		k.ConsumerGroup = "chat-push-workers"
	}
}

// ==================== TracingConfig ====================

func (t *TracingConfig) ApplyDefaults() {
	if t.Exporter == "" {
		t.Exporter = "disabled"
	}
	if t.ServiceName == "" {
		t.ServiceName = "chat-bindings"
	}
	if t.SampleRatio <= 0 {
		t.SampleRatio = 1.0
	}
}

// ==================== LogConfig ====================

func (l *LogConfig) ApplyDefaults() {
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Level == "" {
		l.Level = "info"
	}
}

func (f *LogFileConfig) ApplyDefaults() {
	if f.Path == "" {
		return
	}
	if f.MaxAge <= 0 {
		f.MaxAge = 7 * 24 * 3600
	}
	if f.RotationTime <= 0 {
		f.RotationTime = 24 * 3600
	}
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.App.Env == "" {
		c.App.Env = GetEnv()
	}
	c.Chat.ApplyDefaults()
	c.Log.ApplyDefaults()
	c.LogFile.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Transport.ApplyDefaults()
}
