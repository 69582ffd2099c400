package config

import (
	"os"
	"strings"
)

// GetSecretOrEnv reads a secret from the file named by {NAME}_FILE, then the
// {NAME} env var, then falls back to defaultValue.
func GetSecretOrEnv(name string, defaultValue string) string {
	if filePath := os.Getenv(name + "_FILE"); filePath != "" {
		if data, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

type SecretDefinition struct {
	Name     string  // e.g. CHAT_AUTH_SECRET
	Target   *string // field to fill
	Default  string
	Required bool
}

type SecretNotFoundError struct {
	Name string
}

func (e *SecretNotFoundError) Error() string {
	return "required secret not found: " + e.Name
}

// LoadConfigWithSecrets runs LoadConfig and then overlays secrets. A secret
// that resolves to empty leaves the loaded value in place.
func LoadConfigWithSecrets(cfg interface{}, secrets []SecretDefinition, opts ...LoadOptions) error {
	if err := LoadConfig(cfg, opts...); err != nil {
		return err
	}
	return applySecrets(secrets)
}

func applySecrets(secrets []SecretDefinition) error {
	for _, s := range secrets {
		if s.Target == nil {
			continue
		}
		value := GetSecretOrEnv(s.Name, s.Default)
		if value == "" {
			if s.Required && *s.Target == "" {
				return &SecretNotFoundError{Name: s.Name}
			}
			continue
		}
		*s.Target = value
	}
	return nil
}

// Secrets lists the sensitive fields of c and the env names they load from.
func (c *Config) Secrets() []SecretDefinition {
	return []SecretDefinition{
		{Name: "CHAT_AUTH_SECRET", Target: &c.Auth.SecretKey},
		{Name: "CHAT_AUTH_KEY", Target: &c.Chat.AuthKey},
		{Name: "CHAT_REDIS_PASSWORD", Target: &c.Redis.Password},
		{Name: "CHAT_KAFKA_PASSWORD", Target: &c.Kafka.Password},
	}
}
