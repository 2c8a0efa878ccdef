package cache

import (
	"context"
	"fmt"
	"time"

	"user_manager/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func SetupRedis(redisCfg *config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", redisCfg.Host, redisCfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: redisCfg.RedisPassword,
		DB:       redisCfg.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logrus.WithField("addr", addr).Info("Redis connection established successfully")
	return rdb, nil
}
