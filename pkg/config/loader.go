package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type LoadOptions struct {
	ConfigPath    string // directory holding config_<env>.yaml, "./configs" by default
	EnvPrefix     string // enables viper.AutomaticEnv with this prefix
	AllowNoConfig bool   // env-only configuration
}

// LoadConfig reads .env (or $ENV_FILE), then config_<APP_ENV>.yaml, then the
// environment, into cfg.
func LoadConfig(cfg interface{}, opts ...LoadOptions) error {
	opt := LoadOptions{ConfigPath: "./configs"}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.ConfigPath == "" {
		opt.ConfigPath = "./configs"
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s failed: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env failed: %w", err)
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config_%s", GetEnv()))
	v.SetConfigType("yaml")
	v.AddConfigPath(opt.ConfigPath)

	if opt.EnvPrefix != "" {
		v.SetEnvPrefix(opt.EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || !opt.AllowNoConfig {
			return fmt.Errorf("read config failed: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}
	return nil
}

// GetEnv returns APP_ENV, "dev" when unset.
func GetEnv() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		return "dev"
	}
	return env
}

// GetNodeID returns the first non-empty env var of envKeys, then HOSTNAME.
func GetNodeID(envKeys ...string) string {
	for _, key := range envKeys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return os.Getenv("HOSTNAME")
}
