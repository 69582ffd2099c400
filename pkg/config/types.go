package config

import "time"

// ==================== Base ====================

type AppConfig struct {
	Env    string `yaml:"env" mapstructure:"env"`
	NodeID string `yaml:"node_id" mapstructure:"node_id"`
}

type LogConfig struct {
	Format       string `yaml:"format" mapstructure:"format"`
	Level        string `yaml:"level" mapstructure:"level"`
	ReportCaller bool   `yaml:"report_caller" mapstructure:"report_caller"`
}

// LogFileConfig enables rotated file output next to stdout.
type LogFileConfig struct {
	Path         string   `yaml:"path" mapstructure:"path"`
	MaxAge       Duration `yaml:"max_age" mapstructure:"max_age"`
	RotationTime Duration `yaml:"rotation_time" mapstructure:"rotation_time"`
}

// ==================== Infrastructure ====================

type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Db       int    `yaml:"db" mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers       []string `yaml:"brokers" mapstructure:"brokers"`
	Topic         string   `yaml:"topic" mapstructure:"topic"`
	ConsumerGroup string   `yaml:"consumer_group" mapstructure:"consumer_group"`
	ClientID      string   `yaml:"client_id" mapstructure:"client_id"`
	Username      string   `yaml:"username" mapstructure:"username"`
	Password      string   `yaml:"password" mapstructure:"password"`
	SASLMechanism string   `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"`
	TLSEnabled    bool     `yaml:"tls_enabled" mapstructure:"tls_enabled"`
	RequiredAcks  string   `yaml:"required_acks" mapstructure:"required_acks"`
}

// TransportConfig selects the realtime transport: "local" keeps frames in
// process, "redis" fans them out over Redis Pub/Sub.
type TransportConfig struct {
	Kind   string `yaml:"kind" mapstructure:"kind"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// ==================== Auth ====================

type AuthConfig struct {
	SecretKey        string   `yaml:"secret_key" mapstructure:"secret_key"`
	TokenTTL         Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	ClockSkew        Duration `yaml:"clock_skew" mapstructure:"clock_skew"`
	Issuer           string   `yaml:"issuer" mapstructure:"issuer"`
	RevocationPrefix string   `yaml:"revocation_prefix" mapstructure:"revocation_prefix"`
	// Required makes the engine reject a ChatConfig without a valid AuthKey.
	Required bool `yaml:"required" mapstructure:"required"`
}

// ==================== Chat ====================

// PushConfig controls mobile push payloads attached to sent messages.
type PushConfig struct {
	SendPushes      bool   `yaml:"send_pushes" mapstructure:"send_pushes"`
	DeviceToken     string `yaml:"device_token" mapstructure:"device_token"`
	DeviceGateway   string `yaml:"device_gateway" mapstructure:"device_gateway"`
	APNSTopic       string `yaml:"apns_topic" mapstructure:"apns_topic"`
	APNSEnvironment string `yaml:"apns_environment" mapstructure:"apns_environment"`
}

// ChatConfig is handed to the engine when a chat is initialized.
type ChatConfig struct {
	PublishKey   string `yaml:"publish_key" mapstructure:"publish_key"`
	SubscribeKey string `yaml:"subscribe_key" mapstructure:"subscribe_key"`
	UserID       string `yaml:"user_id" mapstructure:"user_id"`
	AuthKey      string `yaml:"auth_key" mapstructure:"auth_key"`
	LogLevel     string `yaml:"log_level" mapstructure:"log_level"`

	TypingTimeout               Duration `yaml:"typing_timeout" mapstructure:"typing_timeout"`
	StoreUserActivityInterval   Duration `yaml:"store_user_activity_interval" mapstructure:"store_user_activity_interval"`
	StoreUserActivityTimestamps bool     `yaml:"store_user_activity_timestamps" mapstructure:"store_user_activity_timestamps"`

	PushNotifications PushConfig `yaml:"push_notifications" mapstructure:"push_notifications"`

	// RateLimitFactor multiplies the per-channel interval after each
	// consecutive throttled publish.
	RateLimitFactor     int                      `yaml:"rate_limit_factor" mapstructure:"rate_limit_factor"`
	RateLimitPerChannel map[string]time.Duration `yaml:"rate_limit_per_channel" mapstructure:"rate_limit_per_channel"`

	SyncMutedUsers bool `yaml:"sync_muted_users" mapstructure:"sync_muted_users"`
}

// ==================== Observability ====================

type TracingConfig struct {
	Exporter     string            `yaml:"exporter" mapstructure:"exporter"`
	Endpoint     string            `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName  string            `yaml:"service_name" mapstructure:"service_name"`
	Insecure     bool              `yaml:"insecure" mapstructure:"insecure"`
	Headers      map[string]string `yaml:"headers" mapstructure:"headers"`
	SampleRatio  float64           `yaml:"sample_ratio" mapstructure:"sample_ratio"`
	ResourceTags map[string]string `yaml:"resource_tags" mapstructure:"resource_tags"`
}

// ==================== Root ====================

// Config is the full process configuration for chat tooling.
type Config struct {
	App       AppConfig       `yaml:"app" mapstructure:"app"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	LogFile   LogFileConfig   `yaml:"log_file" mapstructure:"log_file"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Tracing   TracingConfig   `yaml:"tracing" mapstructure:"tracing"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
}
