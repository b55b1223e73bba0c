package locker

import (
	"github.com/fanstage/fanstage/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the optional per-key locker. Without a Redis address the
// locker is nil and callers fall back to the database-level gate alone.
var Module = fx.Module("locker",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Locker {
		if cfg.RedisAddr == "" {
			return nil
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		log.Info("redis locker enabled", zap.String("addr", cfg.RedisAddr))
		return NewLocker(client)
	}),
)
