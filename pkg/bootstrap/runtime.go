package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Goden-Gun/chat-bindings/pkg/auth"
	"github.com/Goden-Gun/chat-bindings/pkg/chat"
	"github.com/Goden-Gun/chat-bindings/pkg/config"
	"github.com/Goden-Gun/chat-bindings/pkg/engine/memory"
	"github.com/Goden-Gun/chat-bindings/pkg/kafka"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
	"github.com/Goden-Gun/chat-bindings/pkg/pubsub"
	"github.com/Goden-Gun/chat-bindings/pkg/push"
)

// Runtime is a chat bound to its infrastructure. Fields are nil for pieces
// the config leaves out.
type Runtime struct {
	Config      *config.Config
	Redis       *redis.Client
	Transport   pubsub.Transport
	Producer    *kafka.Producer
	Push        push.Gateway
	Revocations auth.RevocationList
	Engine      *memory.Engine
	Chat        *chat.Chat

	closers []func() error
}

// AuthConfig converts the file config into token settings.
func AuthConfig(cfg config.AuthConfig) auth.Config {
	out := auth.Config{
		Secret:           cfg.SecretKey,
		TTL:              cfg.TokenTTL.Duration(),
		ClockSkew:        cfg.ClockSkew.Duration(),
		Issuer:           cfg.Issuer,
		RevocationPrefix: cfg.RevocationPrefix,
	}
	out.Defaults()
	return out
}

// KafkaConfig converts the file config into producer settings.
func KafkaConfig(cfg config.KafkaConfig) kafka.Config {
	return kafka.Config{
		Brokers:       cfg.Brokers,
		Topic:         cfg.Topic,
		ClientID:      cfg.ClientID,
		Username:      cfg.Username,
		Password:      cfg.Password,
		SASLMechanism: cfg.SASLMechanism,
		TLSEnabled:    cfg.TLSEnabled,
		RequiredAcks:  cfg.RequiredAcks,
	}
}

// NewRuntime dials what cfg asks for and starts the engine. cfg must have
// defaults applied. On error everything opened so far is closed again.
func NewRuntime(ctx context.Context, cfg *config.Config) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()
	entry := log.Component("bootstrap")

	needRedis := cfg.Transport.Kind == config.TransportRedis || (cfg.Redis.Addr != "" && cfg.Auth.SecretKey != "")
	if needRedis {
		if rt.Redis, err = InitRedis(ctx, cfg.Redis); err != nil {
			return rt, err
		}
		rt.closers = append(rt.closers, rt.Redis.Close)
		if revs := auth.NewRedisRevocationList(rt.Redis, cfg.Auth.RevocationPrefix); revs != nil {
			rt.Revocations = revs
		}
	}

	switch cfg.Transport.Kind {
	case config.TransportLocal:
		local := pubsub.NewLocal()
		rt.Transport = local
		rt.closers = append(rt.closers, local.Close)
	case config.TransportRedis:
		tr, err := pubsub.NewRedis(rt.Redis, cfg.Transport.Prefix)
		if err != nil {
			return rt, err
		}
		rt.Transport = tr
		rt.closers = append(rt.closers, tr.Close)
	default:
		return rt, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}

	if cfg.Kafka.Enabled {
		if rt.Producer, err = kafka.NewProducer(KafkaConfig(cfg.Kafka)); err != nil {
			return rt, fmt.Errorf("kafka producer: %w", err)
		}
		rt.closers = append(rt.closers, rt.Producer.Close)
	}
	rt.Push = push.New(cfg.Chat.PushNotifications, rt.Producer, cfg.Kafka.Topic)
	rt.closers = append(rt.closers, rt.Push.Close)

	ApplyChatLevel(cfg.Chat.LogLevel)
	rt.Engine, err = memory.New(ctx, memory.Options{
		Chat:         cfg.Chat,
		Auth:         AuthConfig(cfg.Auth),
		AuthRequired: cfg.Auth.Required,
		Revocations:  rt.Revocations,
		Transport:    rt.Transport,
		Push:         rt.Push,
	})
	if err != nil {
		return rt, err
	}
	rt.Chat = chat.New(rt.Engine, chat.WithActivityInterval(cfg.Chat.StoreUserActivityInterval.Duration()))
	rt.closers = append(rt.closers, rt.Engine.Close, rt.Chat.Close)

	entry.WithFields(log.Fields{
		"user":      cfg.Chat.UserID,
		"transport": cfg.Transport.Kind,
		"kafka":     rt.Producer != nil,
	}).Info("chat runtime ready")
	return rt, nil
}

// Close tears the runtime down in reverse order of construction.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
