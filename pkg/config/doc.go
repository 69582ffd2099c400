// Package config holds the typed configuration for chat tooling and the
// viper based loader.
//
//	cfg := &config.Config{}
//	if err := config.LoadConfigWithSecrets(cfg, cfg.Secrets(), config.LoadOptions{
//	    ConfigPath:    "./configs",
//	    EnvPrefix:     "CHAT",
//	    AllowNoConfig: true,
//	}); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
package config
