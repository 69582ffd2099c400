package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/Goden-Gun/chat-bindings/pkg/config"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
)

// InitRedis dials Redis and checks the connection.
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Component("bootstrap").WithError(err).WithField("addr", cfg.Addr).Error("redis init failed")
		return nil, err
	}
	log.Component("bootstrap").WithField("addr", cfg.Addr).Info("redis initialized")
	return client, nil
}
