package kafka

import (
	"crypto/tls"
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// Config describes the brokers used for outbound push delivery.
type Config struct {
	Brokers       []string `yaml:"brokers" mapstructure:"brokers"`
	Topic         string   `yaml:"topic" mapstructure:"topic"`
	ClientID      string   `yaml:"client_id" mapstructure:"client_id"`
	Username      string   `yaml:"username" mapstructure:"username"`
	Password      string   `yaml:"password" mapstructure:"password"`
	SASLMechanism string   `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"`
	TLSEnabled    bool     `yaml:"tls_enabled" mapstructure:"tls_enabled"`

	// RequiredAcks is one of "none", "one" or "all" (default).
	RequiredAcks string `yaml:"required_acks" mapstructure:"required_acks"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Enabled reports whether brokers are configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c Config) sarama() (*sarama.Config, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka brokers empty")
	}
	base := sarama.NewConfig()
	base.Version = sarama.V2_1_0_0
	if c.ClientID != "" {
		base.ClientID = c.ClientID
	}
	base.Producer.Return.Successes = true
	base.Producer.Retry.Max = max(c.MaxAttempts, 3)
	base.Producer.RequiredAcks = parseRequiredAcks(c.RequiredAcks)

	if c.TLSEnabled {
		base.Net.TLS.Enable = true
		base.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.Username != "" {
		base.Net.SASL.Enable = true
		base.Net.SASL.User = c.Username
		base.Net.SASL.Password = c.Password
		switch strings.ToUpper(strings.TrimSpace(c.SASLMechanism)) {
		case "SCRAM-SHA-512":
			base.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			base.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return newSCRAMClient(scram.SHA512)
			}
		case "SCRAM-SHA-256":
			base.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			base.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return newSCRAMClient(scram.SHA256)
			}
		default:
			base.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}
	return base, nil
}

func parseRequiredAcks(v string) sarama.RequiredAcks {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "none":
		return sarama.NoResponse
	case "one":
		return sarama.WaitForLocal
	default:
		return sarama.WaitForAll
	}
}
