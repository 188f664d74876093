package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"kntpass.backend/internal/config"
)

// KV is the shared client for the hosted key-value store. All key and
// config records live in Redis hashes behind it.
var KV *redis.Client

func ConnectKV() {
	KV = redis.NewClient(&redis.Options{
		Addr:         config.Cfg.RedisAddr,
		Password:     config.Cfg.RedisPassword,
		DB:           config.Cfg.RedisDB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := KV.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", config.Cfg.RedisAddr).Msg("could not reach the key-value store")
	}
	log.Info().Str("addr", config.Cfg.RedisAddr).Msg("connected to the key-value store")
}
