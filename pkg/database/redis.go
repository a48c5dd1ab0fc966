package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dropout_risk_backend/internal/config"
	"dropout_risk_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// KeyPrefix namespaces every key this service writes, so the pipeline can
// share a Redis instance with other applications.
const KeyPrefix = "dropout"

const pingTimeout = 3 * time.Second

// RedisKey joins parts under KeyPrefix, e.g. RedisKey("benchmark", "c1")
// gives "dropout:benchmark:c1".
func RedisKey(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	if logger.Log != nil {
		logger.Log.Info("Redis连接成功", zap.String("addr", addr), zap.Int("db", cfg.DB))
	}
	return rdb, nil
}
